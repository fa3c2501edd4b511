package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/search"
	"github.com/zfogg/traveltweets/internal/util"
)

// Search finds tweets or users. Tweets from private accounts the viewer
// does not follow are left out.
// GET /api/search?q=&type=tweets|users
func (h *Handlers) Search(c *gin.Context) {
	limit, offset := util.Pagination(c)
	kind := c.DefaultQuery("type", search.TypeTweets)

	results, err := h.search.Search(c.Request.Context(), util.ViewerID(c), kind, c.Query("q"), limit, offset)
	if err != nil {
		respondError(c, err, "search")
		return
	}

	if kind == search.TypeUsers {
		util.RespondSuccess(c, gin.H{
			"type":       kind,
			"users":      results.Users,
			"pagination": util.PageMeta(limit, offset, len(results.Users), int64(results.Total)),
		})
		return
	}

	views, err := h.tweetViews(c, results.Tweets)
	if err != nil {
		util.RespondInternalError(c, "load viewer state", err)
		return
	}
	util.RespondSuccess(c, gin.H{
		"type":       kind,
		"tweets":     views,
		"pagination": util.PageMeta(limit, offset, len(views), int64(results.Total)),
	})
}
