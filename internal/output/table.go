package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(ColorDimGray)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	tableDimStyle    = lipgloss.NewStyle().Foreground(ColorDimGray)
)

// Table collects rows and renders them with a rounded lipgloss border.
// Columns marked with Dim render in a muted color, which the plan uses for
// context such as the source module.
type Table struct {
	headers []string
	rows    [][]string
	dim     map[int]bool
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, dim: map[int]bool{}}
}

// Row appends a row. Missing cells render empty.
func (t *Table) Row(cells ...string) *Table {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return t
}

// Dim mutes the given columns.
func (t *Table) Dim(cols ...int) *Table {
	for _, c := range cols {
		t.dim[c] = true
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) String() string {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case t.dim[col]:
				return tableDimStyle
			}
			return lipgloss.NewStyle()
		})
	return tbl.String()
}
