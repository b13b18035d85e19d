package core

import "time"

// Post statuses and kinds
const (
	StatusPublished = "published"

	// ErrorResearchPrefix marks a finding whose grounded lookup failed.
	ErrorResearchPrefix = "Error fetching research:"
)

// PostKind discriminates the special post types from general posts.
type PostKind string

const (
	KindGeneral PostKind = "general"
	KindTool    PostKind = "tool"
)

// Source is a single citation source attached to a grounded finding.
type Source struct {
	URI   string `json:"uri,omitempty"`   // Source URL (may be a grounding redirect)
	Title string `json:"title,omitempty"` // Source title or domain
}

// ResearchFinding is the grounded answer for one outline point.
type ResearchFinding struct {
	Point           string   `json:"point"`                      // Outline bullet/heading the finding answers
	GroundedText    string   `json:"grounded_text"`              // LLM text, possibly search-grounded, or an error placeholder
	Sources         []Source `json:"sources"`                    // Citation sources in discovery order
	SearchQueries   []string `json:"search_queries,omitempty"`   // Queries the model actually issued
	RenderedContent string   `json:"rendered_content,omitempty"` // Search suggestion widget markup, passed through unmodified
}

// IsError reports whether the finding holds an error placeholder instead of research.
func (f ResearchFinding) IsError() bool {
	return len(f.GroundedText) >= len(ErrorResearchPrefix) && f.GroundedText[:len(ErrorResearchPrefix)] == ErrorResearchPrefix
}

// FindingSet is an insertion-ordered mapping of outline point -> finding.
// Re-putting an existing point replaces the value but keeps its position.
type FindingSet struct {
	order   []string
	byPoint map[string]ResearchFinding
}

// NewFindingSet creates an empty finding set.
func NewFindingSet() *FindingSet {
	return &FindingSet{byPoint: make(map[string]ResearchFinding)}
}

// Put stores a finding keyed by its point.
func (s *FindingSet) Put(f ResearchFinding) {
	if _, exists := s.byPoint[f.Point]; !exists {
		s.order = append(s.order, f.Point)
	}
	s.byPoint[f.Point] = f
}

// Get returns the finding for a point.
func (s *FindingSet) Get(point string) (ResearchFinding, bool) {
	f, ok := s.byPoint[point]
	return f, ok
}

// Len returns the number of findings.
func (s *FindingSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Ordered returns the findings in insertion order.
func (s *FindingSet) Ordered() []ResearchFinding {
	if s == nil {
		return nil
	}
	out := make([]ResearchFinding, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.byPoint[p])
	}
	return out
}

// ResearchDetail is the persisted form of a finding, keyed by its citation id.
type ResearchDetail struct {
	ID    string          `json:"id"`    // Citation id ("ref-N") used by markers in the content
	Point string          `json:"point"` // Outline point
	Data  ResearchFinding `json:"data"`  // The full finding
}

// TopicSelection is the topic chosen for a run.
type TopicSelection struct {
	Title           string   `json:"title"`            // Working title for the post
	HookDescription string   `json:"hook_description"` // One-paragraph angle/hook
	SearchQueries   []string `json:"search_queries"`   // Queries suggested for research
}

// PostMetadata is derived from the final draft.
type PostMetadata struct {
	Title           string   `json:"title"`            // Final post title
	MetaDescription string   `json:"meta_description"` // SEO description
	ImagePrompt     string   `json:"image_prompt"`     // Prompt for the cover image
	Tags            []string `json:"tags"`             // Tags in display order
	Category        int64    `json:"category"`         // Category id (references categories.id)
	ReadTimeMinutes int      `json:"read_time"`        // Computed from word count, never LLM supplied
}

// Category is a blog category record.
type Category struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// CategoryCount is the number of posts in a category.
type CategoryCount struct {
	CategoryID int64  `json:"category_id"`
	Title      string `json:"title"`
	Count      int    `json:"count"`
}

// Post is the persisted blog post.
type Post struct {
	ID              int64            `json:"id,omitempty"`               // Store-assigned id
	Title           string           `json:"title"`                      // Post title
	Slug            string           `json:"slug"`                       // Unique key derived from Title
	Description     string           `json:"description"`                // Meta description
	Content         string           `json:"content"`                    // Markdown body with [ref:ref-N] markers
	Category        *int64           `json:"category"`                   // Category id, nil for uncategorised posts
	ImageURL        *string          `json:"image_url"`                  // Public cover image URL
	ToolName        *string          `json:"tool_name"`                  // Tool posts only
	ReadTime        int              `json:"read_time"`                  // Minutes
	Tags            []string         `json:"tags"`                       // Display ordered tags
	ResearchDetails []ResearchDetail `json:"research_details,omitempty"` // Findings in original point order
	Author          string           `json:"author"`                     // Constant author name
	Status          string           `json:"status"`                     // Always "published"
	CreatedAt       time.Time        `json:"created_at"`                 // Store-assigned creation time
}
