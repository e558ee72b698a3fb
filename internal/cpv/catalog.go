// Package cpv maps Common Procurement Vocabulary codes to the cluster ids
// used throughout the prediction core, and canonicalizes buyer names for
// matching.
package cpv

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/civant/procure-intel/internal/model"
)

// Cluster is one category of goods or services.
type Cluster struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Prefixes []string `yaml:"cpv_prefixes"` // CPV family prefixes, longest match wins
}

// Catalog resolves CPV codes and free-form cluster ids to known clusters.
type Catalog struct {
	clusters map[string]Cluster
	byPrefix []prefixEntry // sorted longest-first
}

type prefixEntry struct {
	prefix    string
	clusterID string
}

// catalogFile is the YAML shape of a cluster catalog file.
type catalogFile struct {
	Clusters []Cluster `yaml:"clusters"`
}

// LoadCatalog reads a cluster catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cpv: read catalog %s", path)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "cpv: parse catalog %s", path)
	}
	if len(f.Clusters) == 0 {
		return nil, eris.Errorf("cpv: catalog %s defines no clusters", path)
	}
	return newCatalog(f.Clusters), nil
}

// DefaultCatalog returns the built-in catalog used when no file is
// configured.
func DefaultCatalog() *Catalog {
	return newCatalog([]Cluster{
		{ID: "cluster_it_software", Label: "IT & Software", Prefixes: []string{"72", "48"}},
		{ID: "cluster_consulting", Label: "Consulting & Professional Services", Prefixes: []string{"79"}},
		{ID: "cluster_construction", Label: "Construction & Civil Works", Prefixes: []string{"45"}},
		{ID: "cluster_facilities", Label: "Facilities & Maintenance", Prefixes: []string{"50"}},
		{ID: "cluster_transport", Label: "Transport", Prefixes: []string{"60"}},
		{ID: "cluster_health", Label: "Health & Medical", Prefixes: []string{"33", "85"}},
		{ID: "cluster_education", Label: "Education & Training", Prefixes: []string{"80"}},
		{ID: "cluster_environment", Label: "Environment & Waste", Prefixes: []string{"90"}},
		{ID: "cluster_food", Label: "Food & Catering", Prefixes: []string{"15", "55"}},
		{ID: "cluster_telecom", Label: "Telecommunications", Prefixes: []string{"64", "32"}},
		{ID: "cluster_energy", Label: "Energy & Utilities", Prefixes: []string{"09", "65"}},
		{ID: "cluster_finance", Label: "Financial Services", Prefixes: []string{"66"}},
		{ID: "cluster_research", Label: "Research & Development", Prefixes: []string{"73"}},
	})
}

func newCatalog(clusters []Cluster) *Catalog {
	c := &Catalog{clusters: make(map[string]Cluster, len(clusters))}
	for _, cl := range clusters {
		c.clusters[cl.ID] = cl
		for _, p := range cl.Prefixes {
			c.byPrefix = append(c.byPrefix, prefixEntry{prefix: p, clusterID: cl.ID})
		}
	}
	sort.Slice(c.byPrefix, func(i, j int) bool {
		return len(c.byPrefix[i].prefix) > len(c.byPrefix[j].prefix)
	})
	return c
}

// Normalize maps a free-form cluster id to a known cluster id, or
// ClusterUnknown when empty or unrecognized. Unknown is a documented
// fallback, not an error: such evidence still counts at buyer level.
func (c *Catalog) Normalize(clusterID string) string {
	id := strings.TrimSpace(strings.ToLower(clusterID))
	if id == "" || id == model.ClusterUnknown {
		return model.ClusterUnknown
	}
	if _, ok := c.clusters[id]; ok {
		return id
	}
	return model.ClusterUnknown
}

// FromCPV resolves a CPV code to a cluster id by longest prefix match,
// falling back to ClusterUnknown.
func (c *Catalog) FromCPV(code string) string {
	code = strings.TrimSpace(code)
	for _, e := range c.byPrefix {
		if strings.HasPrefix(code, e.prefix) {
			return e.clusterID
		}
	}
	return model.ClusterUnknown
}

// Label returns the display label for a cluster id, or the id itself for
// unknown clusters.
func (c *Catalog) Label(clusterID string) string {
	if cl, ok := c.clusters[clusterID]; ok {
		return cl.Label
	}
	return clusterID
}

// Known reports whether the cluster id exists in the catalog.
func (c *Catalog) Known(clusterID string) bool {
	_, ok := c.clusters[clusterID]
	return ok
}
