package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaform/internal/transformation"
)

// PolicyInfo describes one loaded policy.
type PolicyInfo struct {
	Route      string                 `json:"route"`
	PathPrefix string                 `json:"pathPrefix,omitempty"`
	Policy     *transformation.Config `json:"policy,omitempty"`
}

// PolicyLister exposes the policies currently in effect.
type PolicyLister interface {
	Policies() []PolicyInfo
}

// PolicyListerFunc adapts a function to PolicyLister.
type PolicyListerFunc func() []PolicyInfo

// Policies implements PolicyLister.
func (f PolicyListerFunc) Policies() []PolicyInfo {
	return f()
}

// PoliciesHandler dumps the loaded default and per-route policies.
func PoliciesHandler(lister PolicyLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		policies := lister.Policies()
		if policies == nil {
			policies = []PolicyInfo{}
		}
		c.JSON(http.StatusOK, gin.H{"policies": policies})
	}
}
