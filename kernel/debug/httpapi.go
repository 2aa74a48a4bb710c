package debug

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flowforge/kernel/infrastructure/ratelimit"
	"github.com/flowforge/kernel/pkg/version"
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const streamPollInterval = 250 * time.Millisecond

// Router builds the C17 debug/control HTTP surface over cache: breakpoint
// and debug-mode management, variable inspection, and watch-expression
// registration. It is a separate gin.Engine from the daemon's chi health
// router so the two can be mounted independently (or not at all, when
// debug mode stays disabled in production).
func Router(cache *Cache) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ratelimit.New(ratelimit.DefaultConfig()).GinMiddleware())

	r.GET("/debug/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version.FullVersion()})
	})

	r.GET("/debug/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active":     cache.IsDebugActive(),
			"mode":       cache.GetDebugMode(),
			"stepping":   cache.IsStepping(),
			"generation": cache.Generation(),
		})
	})

	r.POST("/debug/mode", func(c *gin.Context) {
		var body struct {
			Mode int `json:"mode" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cache.SetDebugMode(Mode(body.Mode))
		c.JSON(http.StatusOK, gin.H{"mode": cache.GetDebugMode()})
	})

	r.GET("/debug/breakpoints", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"hot_locations": cache.HotLocations()})
	})

	r.PUT("/debug/breakpoints", func(c *gin.Context) {
		var body struct {
			Breakpoints []Location `json:"breakpoints"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cache.UpdateBreakpoints(body.Breakpoints)
		c.JSON(http.StatusOK, gin.H{"count": len(body.Breakpoints)})
	})

	r.GET("/debug/variables", func(c *gin.Context) {
		name := c.Query("name")
		if name != "" {
			value, ok := cache.GetCachedVariable(name)
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "variable not cached at current generation"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"name": name, "value": value})
			return
		}
		c.JSON(http.StatusOK, gin.H{"variables": cache.GetCachedVariables()})
	})

	r.GET("/debug/watch", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"expressions": cache.GetWatchExpressions(),
			"results":     cache.GetAllWatchResults(),
		})
	})

	r.POST("/debug/watch", func(c *gin.Context) {
		var body struct {
			Expression string `json:"expression" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := cache.AddWatch(body.Expression)
		c.JSON(http.StatusCreated, gin.H{"id": id, "expression": body.Expression})
	})

	r.DELETE("/debug/watch", func(c *gin.Context) {
		expr := c.Query("expression")
		removed := cache.RemoveWatch(expr)
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	})

	r.POST("/debug/clear", func(c *gin.Context) {
		cache.Clear()
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	})

	r.GET("/debug/stream", func(c *gin.Context) {
		streamWatchResults(c.Writer, c.Request, cache)
	})

	return r
}

// streamWatchResults upgrades to a websocket and pushes a snapshot of watch
// results every time cache's generation advances, so a connected debugger
// client sees breakpoint/watch state change without polling the REST
// endpoints itself. The connection ends when the client disconnects or the
// request context is cancelled.
func streamWatchResults(w http.ResponseWriter, r *http.Request, cache *Cache) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var lastGen uint64
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			gen := cache.Generation()
			if gen == lastGen {
				continue
			}
			lastGen = gen
			if err := conn.WriteJSON(map[string]interface{}{
				"generation": gen,
				"results":    cache.GetAllWatchResults(),
			}); err != nil {
				return
			}
		}
	}
}
