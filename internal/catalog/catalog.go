// Package catalog holds the static provider facts used by the assistant: courses, features,
// contact details, the offline fallback table and the knowledge block indexed when scraping
// yields nothing.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

//go:embed catalog.yaml
var embedded []byte

// CourseInfo is a catalog entry shown to the model and the widget.
type CourseInfo struct {
	Name    domain.Course `yaml:"name" json:"name"`
	Summary string        `yaml:"summary" json:"summary"`
}

// Topic is one row of the fallback table.
type Topic struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Response string   `yaml:"response" json:"response"`
}

// Fallback is the ordered keyword table answered when the completion provider is unavailable.
type Fallback struct {
	Topics  []Topic `yaml:"topics" json:"topics"`
	Default string  `yaml:"default" json:"default"`
}

// Catalog is the provider description loaded from YAML.
type Catalog struct {
	Organization      string       `yaml:"organization" json:"organization"`
	Website           string       `yaml:"website" json:"website"`
	ContactEmail      string       `yaml:"contact_email" json:"contact_email"`
	Courses           []CourseInfo `yaml:"courses" json:"courses"`
	Features          []string     `yaml:"features" json:"features"`
	Instructions      string       `yaml:"instructions" json:"-"`
	OfflineNotice     string       `yaml:"offline_notice" json:"-"`
	KnowledgeFallback string       `yaml:"knowledge_fallback" json:"-"`
	NextSteps         []string     `yaml:"next_steps" json:"next_steps"`
	Fallback          Fallback     `yaml:"fallback" json:"-"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for i := range c.Fallback.Topics {
		for j, kw := range c.Fallback.Topics[i].Keywords {
			c.Fallback.Topics[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return &c, nil
}

// Validate checks the fields the assistant cannot work without.
func (c *Catalog) Validate() error {
	if c.Organization == "" {
		return fmt.Errorf("catalog: organization is required")
	}
	if len(c.Courses) == 0 {
		return fmt.Errorf("catalog: at least one course is required")
	}
	for _, ci := range c.Courses {
		if !ci.Name.Selected() {
			return fmt.Errorf("catalog: unknown course %q", ci.Name)
		}
	}
	if c.Fallback.Default == "" {
		return fmt.Errorf("catalog: fallback default response is required")
	}
	for i, t := range c.Fallback.Topics {
		if t.Response == "" || len(t.Keywords) == 0 {
			return fmt.Errorf("catalog: fallback topic %d (%s) needs keywords and a response", i, t.Name)
		}
	}
	return nil
}

// KnowledgeText returns the block indexed when no website content could be ingested.
func (c *Catalog) KnowledgeText() string {
	if s := strings.TrimSpace(c.KnowledgeFallback); s != "" {
		return s
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s COURSES:\n", strings.ToUpper(c.Organization))
	for _, ci := range c.Courses {
		fmt.Fprintf(&b, "- %s\n", ci.Name)
	}
	return b.String()
}
