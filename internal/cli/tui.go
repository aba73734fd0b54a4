package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AdenKoperczak/grib2pf/pkg/source"
)

var (
	pickerHintStyle   = lipgloss.NewStyle().Foreground(colorDim)
	pickerHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	pickerCursorStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
)

// ProductListModel picks one MRMS product. Typing "/" starts a filter
// over product names and descriptions.
type ProductListModel struct {
	Products []source.Product
	Filter   string
	Cursor   int // index into the filtered products
	Offset   int
	Height   int
	Selected *source.Product

	filtering bool
}

// NewProductListModel returns a picker over products.
func NewProductListModel(products []source.Product) ProductListModel {
	return ProductListModel{Products: products, Height: 15}
}

func (m ProductListModel) Init() tea.Cmd { return nil }

// visible returns the products matching the filter.
func (m ProductListModel) visible() []source.Product {
	if m.Filter == "" {
		return m.Products
	}
	needle := strings.ToLower(m.Filter)
	var out []source.Product
	for _, p := range m.Products {
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
		}
	}
	return out
}

func (m ProductListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
		return m, nil
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg), nil
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m ProductListModel) updateFilter(msg tea.KeyMsg) ProductListModel {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.filtering = false
	case tea.KeyBackspace:
		if n := len(m.Filter); n > 0 {
			m.Filter = m.Filter[:n-1]
		}
	case tea.KeyRunes:
		m.Filter += string(msg.Runes)
	}
	m.Cursor, m.Offset = 0, 0
	return m
}

func (m ProductListModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.visible()
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "/":
		m.filtering = true
	case "up", "k":
		m.Cursor = max(m.Cursor-1, 0)
	case "down", "j":
		m.Cursor = max(min(m.Cursor+1, len(items)-1), 0)
	case "enter":
		if m.Cursor < len(items) {
			p := items[m.Cursor]
			m.Selected = &p
		}
		return m, tea.Quit
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
	return m, nil
}

func (m ProductListModel) View() string {
	items := m.visible()

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Select MRMS Product"))
	b.WriteString("\n")
	if m.filtering || m.Filter != "" {
		b.WriteString(pickerHintStyle.Render("filter: ") + m.Filter)
	} else {
		b.WriteString(pickerHintStyle.Render("↑/↓ navigate  / filter  ⏎ select  q quit"))
	}
	b.WriteString("\n\n")

	var rows [][]string
	for i := m.Offset; i < min(m.Offset+m.Height, len(items)); i++ {
		marker := "  "
		if i == m.Cursor {
			marker = "▸ "
		}
		rows = append(rows, []string{marker, items[i].Name, items[i].Units, items[i].Description})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(pickerHintStyle).
		Headers("", "Product", "Units", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return pickerHeaderStyle
			case m.Offset+row == m.Cursor:
				return pickerCursorStyle
			case col >= 2:
				return pickerHintStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(pickerHintStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(items)), len(items))))
	return b.String()
}
