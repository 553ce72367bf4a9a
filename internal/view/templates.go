package view

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/profitboard/internal/shared"
	"github.com/odyssey-erp/profitboard/web"
)

// CurrencySymbol prefixes every money value on the dashboard.
const CurrencySymbol = "£"

var printer = message.NewPrinter(language.BritishEnglish)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Identity    shared.Identity
	Data        any
}

// FuncMap returns the helpers available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"day": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"money":    Money,
		"quantity": Quantity,
		"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
		"pageURL":  PageURL,
		"withQuery": func(path, query string) string {
			if query == "" {
				return path
			}
			return path + "?" + query
		},
	}
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(FuncMap()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// Execute writes a named template to w without touching headers, so callers
// can buffer output and choose the status code afterwards.
func (e *Engine) Execute(w io.Writer, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// Money formats d as a grouped two-decimal amount with the currency symbol.
func Money(d decimal.Decimal) string {
	v := d.Round(2)
	if v.IsNegative() {
		return "-" + CurrencySymbol + printer.Sprintf("%.2f", v.Neg().InexactFloat64())
	}
	return CurrencySymbol + printer.Sprintf("%.2f", v.InexactFloat64())
}

// Quantity formats a unit count, dropping a zero fraction.
func Quantity(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return printer.Sprintf("%d", d.IntPart())
	}
	return printer.Sprintf("%.2f", d.InexactFloat64())
}

// PageURL appends the page parameter to an encoded filter query.
func PageURL(query string, page int) string {
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	values.Set("page", strconv.Itoa(page))
	return "?" + values.Encode()
}
