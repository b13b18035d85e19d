// Package tui is a terminal browser for published posts.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aiblog/internal/core"
	"aiblog/internal/persistence"
	"aiblog/internal/textutil"
)

// PostLister is the part of the content store the browser reads
type PostLister interface {
	ListPosts(ctx context.Context, filter persistence.PostFilter) ([]core.Post, error)
}

// filters cycle with tab: all posts, general posts, tool posts
var filters = []core.PostKind{"", core.KindGeneral, core.KindTool}

const previewRunes = 1200

type postsLoadedMsg struct {
	kind  core.PostKind
	posts []core.Post
	err   error
}

// model represents the state of the TUI application.
type model struct {
	ctx         context.Context
	store       PostLister
	limit       int
	filterIdx   int
	posts       []core.Post
	err         error
	loading     bool
	selectedIdx int // Index of the selected post
	width       int // Terminal width
	height      int // Terminal height
	quitting    bool
}

func newModel(ctx context.Context, store PostLister, limit int) model {
	return model{ctx: ctx, store: store, limit: limit, loading: true, width: 120, height: 40}
}

func (m model) kind() core.PostKind {
	return filters[m.filterIdx]
}

func (m model) load() tea.Cmd {
	ctx, store, kind, limit := m.ctx, m.store, m.kind(), m.limit
	return func() tea.Msg {
		posts, err := store.ListPosts(ctx, persistence.PostFilter{Kind: kind, Limit: limit})
		return postsLoadedMsg{kind: kind, posts: posts, err: err}
	}
}

// Init loads the first page of posts.
func (m model) Init() tea.Cmd {
	return m.load()
}

// Update handles messages and updates the model accordingly.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case postsLoadedMsg:
		// A reply for a filter the user already moved past is stale
		if msg.kind != m.kind() {
			return m, nil
		}
		m.loading = false
		m.posts, m.err = msg.posts, msg.err
		m.selectedIdx = 0

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < len(m.posts)-1 {
				m.selectedIdx++
			}
		case "tab":
			m.filterIdx = (m.filterIdx + 1) % len(filters)
			m.loading = true
			return m, m.load()
		case "r":
			m.loading = true
			return m, m.load()
		}
	}

	return m, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// View renders the TUI.
func (m model) View() string {
	if m.quitting {
		return "Quitting...\n"
	}

	docStyle := lipgloss.NewStyle().Margin(1, 2)
	paneWidth := m.width/2 - 5
	if paneWidth < 20 {
		paneWidth = 20
	}
	listStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)
	detailStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)

	leftPane := listStyle.Render(m.listView())
	rightPane := detailStyle.Render(m.detailView())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	help := mutedStyle.Render("\n\n[↑/k] Up | [↓/j] Down | [tab] Filter | [r] Reload | [q] Quit")

	return docStyle.Render(mainContent + help)
}

func (m model) listView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Posts: "+filterName(m.kind())) + "\n\n")

	switch {
	case m.loading:
		b.WriteString("Loading...")
	case m.err != nil:
		b.WriteString(errorStyle.Render("Failed to load posts: " + m.err.Error()))
	case len(m.posts) == 0:
		b.WriteString("No posts yet.")
	default:
		for i, post := range m.posts {
			cursor, title := "  ", post.Title
			if i == m.selectedIdx {
				cursor, title = "> ", selectedStyle.Render(title)
			}
			line := cursor + title
			if post.ToolName != nil {
				line += mutedStyle.Render(" [" + *post.ToolName + "]")
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func (m model) detailView() string {
	if m.loading || m.err != nil || len(m.posts) == 0 || m.selectedIdx >= len(m.posts) {
		return mutedStyle.Render("Nothing selected.")
	}
	post := m.posts[m.selectedIdx]

	var b strings.Builder
	b.WriteString(titleStyle.Render(post.Title) + "\n")
	b.WriteString(mutedStyle.Render(post.Slug) + "\n\n")
	if post.Description != "" {
		b.WriteString(post.Description + "\n\n")
	}

	fmt.Fprintf(&b, "Read time: %d min\n", post.ReadTime)
	if len(post.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(post.Tags, ", "))
	}
	if post.ToolName != nil {
		fmt.Fprintf(&b, "Tool: %s\n", *post.ToolName)
	}
	if post.ImageURL != nil {
		fmt.Fprintf(&b, "Image: %s\n", *post.ImageURL)
	}
	failed := 0
	for _, d := range post.ResearchDetails {
		if d.Data.IsError() {
			failed++
		}
	}
	fmt.Fprintf(&b, "Research: %d points (%d failed)\n", len(post.ResearchDetails), failed)
	if !post.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", post.CreatedAt.Format("2006-01-02 15:04"))
	}

	b.WriteString("\n" + textutil.Truncate(post.Content, previewRunes))
	return b.String()
}

func filterName(kind core.PostKind) string {
	switch kind {
	case core.KindGeneral:
		return "general"
	case core.KindTool:
		return "tool of the day"
	default:
		return "all"
	}
}

// Start runs the post browser until the user quits.
func Start(ctx context.Context, store PostLister, limit int) error {
	p := tea.NewProgram(newModel(ctx, store, limit), tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
