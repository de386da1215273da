package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/1F47E/trip-spots/pkg/logger"
	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/spatial"
	"github.com/1F47E/trip-spots/pkg/spots"
)

const (
	// panStep is the share of the viewport moved per key press.
	panStep     = 0.1
	maxMessages = 5
	minSpanDeg  = 0.001
)

var (
	panLat, panLng float64
	panSpanKm      float64
	panMax         int
)

var panCmd = &cobra.Command{
	Use:   "pan",
	Short: "Pan a map viewport interactively",
	Long: `Move a viewport with the arrow keys and watch spots load. Small pans stay
inside the grid-snapped cache entry and are served without a network call.`,
	RunE: runPan,
}

func init() {
	panCmd.Flags().Float64Var(&panLat, "lat", 35.6812, "Start latitude")
	panCmd.Flags().Float64Var(&panLng, "lng", 139.7671, "Start longitude")
	panCmd.Flags().Float64Var(&panSpanKm, "span", 2, "Viewport size in km")
	panCmd.Flags().IntVarP(&panMax, "max", "m", 15, "Spots shown per view")
	panCmd.Flags().StringSliceVarP(&categories, "category", "t", nil, "Amenity categories")
}

type viewLoadedMsg struct {
	seq     int
	spots   []models.Spot
	hit     bool
	elapsed time.Duration
}

type panModel struct {
	ctx        context.Context
	service    *spots.Service
	categories []string
	max        int

	viewport models.Bounds
	seq      int
	loading  bool
	spinner  spinner.Model

	spots    []models.Spot
	messages []string
	width    int
	height   int
}

func runPan(cmd *cobra.Command, args []string) error {
	if panSpanKm <= 0 {
		return fmt.Errorf("span must be positive")
	}
	// Log lines would tear the alt screen
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	m := newPanModel(cmd.Context(), spotsApp.service, models.Location{Lat: panLat, Lng: panLng}, panSpanKm, categories, panMax)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}

func newPanModel(ctx context.Context, service *spots.Service, center models.Location, spanKm float64, cats []string, max int) panModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return panModel{
		ctx:        ctx,
		service:    service,
		categories: cats,
		max:        max,
		viewport:   spatial.RadiusBounds(center, spanKm/2),
		spinner:    s,
		loading:    true,
		messages:   []string{},
		width:      80,
		height:     24,
	}
}

func (m panModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

// load fetches the current viewport.
func (m panModel) load() tea.Cmd {
	seq, viewport := m.seq, m.viewport
	return func() tea.Msg {
		start := time.Now()
		res := m.service.LookupView(m.ctx, viewport, m.categories, m.max)
		return viewLoadedMsg{
			seq:     seq,
			spots:   res.Spots,
			hit:     res.Hit,
			elapsed: time.Since(start),
		}
	}
}

func (m panModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.viewport = shift(m.viewport, panStep, 0)
		case "down", "j":
			m.viewport = shift(m.viewport, -panStep, 0)
		case "right", "l":
			m.viewport = shift(m.viewport, 0, panStep)
		case "left", "h":
			m.viewport = shift(m.viewport, 0, -panStep)
		case "+", "=":
			m.viewport = zoom(m.viewport, 0.5)
		case "-":
			m.viewport = zoom(m.viewport, 2)
		case "c":
			m.service.Cache().Clear()
			m.addMessage("cache cleared")
			return m, nil
		default:
			return m, nil
		}
		m.seq++
		m.loading = true
		return m, m.load()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case viewLoadedMsg:
		// A newer pan superseded this result
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		m.spots = msg.spots
		source := "fetched"
		if msg.hit {
			source = "cache hit"
		}
		m.addMessage(fmt.Sprintf("%s: %d spots in %s", source, len(msg.spots), msg.elapsed.Round(time.Millisecond)))
		return m, nil
	}

	return m, nil
}

func (m *panModel) addMessage(s string) {
	m.messages = append(m.messages, s)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[1:]
	}
}

func (m panModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🗺  Spots Viewport"))
	b.WriteString("\n\n")
	b.WriteString(subtitleStyle.Render(formatBounds(m.viewport)))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " Loading spots...\n")
	} else {
		b.WriteString(renderSpotList(m.spots, m.listRows()))
	}

	stats := m.service.Cache().Stats()
	b.WriteString("\n")
	b.WriteString(renderBox("Cache", fmt.Sprintf(
		"Entries: %s  Hits: %s  Misses: %s",
		statStyle.Render(humanize.Comma(int64(stats.Entries))),
		statStyle.Render(humanize.Comma(int64(stats.Hits))),
		statStyle.Render(humanize.Comma(int64(stats.Misses))),
	)))

	if len(m.messages) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Recent activity:"))
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString(dimStyle.Render("• " + msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("←↑↓→ pan • +/- zoom • c clear cache • q quit"))
	return b.String()
}

// listRows leaves room for the header, cache box and activity log.
func (m panModel) listRows() int {
	rows := m.height - 20
	if rows < 3 {
		rows = 3
	}
	return rows
}

func renderSpotList(found []models.Spot, rows int) string {
	if len(found) == 0 {
		return errorStyle.Render("✗ No spots in view") + "\n"
	}

	var b strings.Builder
	for i, s := range found {
		if i == rows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("   … and %d more", len(found)-rows)))
			b.WriteString("\n")
			break
		}
		b.WriteString(fmt.Sprintf("%3d. %s %s\n", i+1, s.Name, dimStyle.Render(s.Type+"/"+s.Subtype)))
	}
	return b.String()
}

// shift moves b by a share of its own height and width.
func shift(b models.Bounds, latShare, lngShare float64) models.Bounds {
	dLat := (b.North - b.South) * latShare
	dLng := (b.East - b.West) * lngShare
	return models.Bounds{
		South: b.South + dLat,
		West:  b.West + dLng,
		North: b.North + dLat,
		East:  b.East + dLng,
	}
}

// zoom scales b around its centre.
func zoom(b models.Bounds, factor float64) models.Bounds {
	cLat := (b.South + b.North) / 2
	cLng := (b.West + b.East) / 2
	halfLat := (b.North - b.South) * factor / 2
	halfLng := (b.East - b.West) * factor / 2
	if halfLat < minSpanDeg || halfLng < minSpanDeg {
		return b
	}
	return models.Bounds{
		South: cLat - halfLat,
		West:  cLng - halfLng,
		North: cLat + halfLat,
		East:  cLng + halfLng,
	}
}
