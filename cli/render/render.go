// Package render writes command results as json, table or yaml.
//
// A TTY defaults to table and anything else to json; --format always wins.
// --no-color only affects the summary banner, never the TUI.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/sparring/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

var formats = map[string]Format{
	"json":  FormatJSON,
	"table": FormatTable,
	"yaml":  FormatYAML,
}

// ParseFormat parses a --format value. An empty value parses to the empty
// Format, leaving the default to the renderer.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return "", nil
	}
	if f, ok := formats[strings.ToLower(s)]; ok {
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
}

// Renderer writes results in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags,
// writing to the app's Writer.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}
	if format == "" {
		format = defaultFormat(out)
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), out), nil
}

// NewRendererWithWriter creates a renderer over out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

func defaultFormat(out io.Writer) Format {
	if f, ok := out.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return FormatTable
		}
	}
	return FormatJSON
}

// Format returns the selected output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render writes data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.table(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Banner writes a run summary banner. Table output gets the styled box
// (plain when --no-color is set); json and yaml render the banner fields.
func (r *Renderer) Banner(b tui.Banner) error {
	if r.format != FormatTable {
		return r.Render(b)
	}
	_, err := fmt.Fprintln(r.out, b.Render(!r.noColor))
	return err
}

// RenderTUI opens the read-only TUI for the given view type.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

// table writes a slice as one row per element under a header, and a struct
// or map as aligned "name: value" lines.
func (r *Renderer) table(data any) error {
	v := indirect(reflect.ValueOf(data))
	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Len() == 0 {
		_, err := fmt.Fprintln(r.out, "(no results)")
		return err
	}

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		header := names(columns(v.Index(0)))
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for i := range v.Len() {
			cells := make(map[string]string)
			for _, col := range columns(v.Index(i)) {
				cells[col.name] = col.cell
			}
			row := make([]string, len(header))
			for j, h := range header {
				row[j] = cells[h]
			}
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
	case reflect.Struct, reflect.Map:
		for _, col := range columns(v) {
			fmt.Fprintf(tw, "%s:\t%s\n", col.name, col.cell)
		}
	default:
		fmt.Fprintf(tw, "%v\n", data)
	}
	return tw.Flush()
}

type column struct {
	name, cell string
}

// columns lists the exported fields of a struct in declaration order, or
// the entries of a map in key order.
func columns(v reflect.Value) []column {
	v = indirect(v)
	var cols []column
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			name, ok := fieldName(f)
			if !ok {
				continue
			}
			cols = append(cols, column{name: name, cell: cell(v.Field(i))})
		}
	case reflect.Map:
		for _, k := range v.MapKeys() {
			cols = append(cols, column{name: fmt.Sprint(k.Interface()), cell: cell(v.MapIndex(k))})
		}
		sort.Slice(cols, func(i, j int) bool { return cols[i].name < cols[j].name })
	default:
		cols = append(cols, column{name: "value", cell: cell(v)})
	}
	return cols
}

func names(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

// fieldName is the json name of an exported field; fields tagged "-" are
// not shown.
func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return strings.ToLower(f.Name), true
	default:
		return name, true
	}
}

// Short slices of strings or integers, such as run IDs or feature vectors,
// are shown inline; anything longer is summarized by its size.
const (
	inlineStrings = 3
	inlineInts    = 8
)

func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		n := v.Len()
		if n == 0 {
			return "[]"
		}
		switch v.Type().Elem().Kind() {
		case reflect.String:
			if n <= inlineStrings {
				return fmt.Sprint(v.Interface())
			}
		case reflect.Int, reflect.Int32, reflect.Int64:
			if n <= inlineInts {
				return fmt.Sprint(v.Interface())
			}
		}
		return fmt.Sprintf("[%d items]", n)
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return t.Format(time.RFC3339)
		}
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
