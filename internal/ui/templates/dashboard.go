// Package templates renders the dashboard page and the fragments the SSE
// endpoint patches into it.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"retail-analytics/internal/models"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.5/bundles/datastar.js"

// Dashboard is the upload page. The form posts to /sse/predict and the
// response patches #status and #summary, and the report signal.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Retail Analytics</title>
<script type="module" src="`+datastarScript+`"></script>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
.cards{display:grid;grid-template-columns:repeat(auto-fit,minmax(180px,1fr));gap:1rem}
.card{border:1px solid #d9e2ec;border-radius:8px;padding:1rem}
.card strong{display:block;font-size:1.4rem}
table{border-collapse:collapse;width:100%;margin-top:1rem}
th,td{border-bottom:1px solid #e4e7eb;padding:.4rem;text-align:left}
.status-error{color:#b42318}
.status-ok{color:#067647}
</style>
</head>
<body data-signals="{report: null}">
<h1>Retail Analytics</h1>
<form id="upload" data-on-submit="@post('/sse/predict', {contentType: 'form'})" enctype="multipart/form-data">
<input type="file" name="file" accept=".csv,.xlsx" required>
<select name="periodicity">
<option value="monthly">Monthly</option>
<option value="yearly">Yearly</option>
</select>
<button type="submit">Analyze</button>
</form>
`)
		if err != nil {
			return err
		}
		if err := Status("info", "Upload a CSV or XLSX export to begin.").Render(ctx, w); err != nil {
			return err
		}
		_, err = io.WriteString(w, `<div id="summary"></div>
</body>
</html>
`)
		return err
	})
}

// Status is the #status fragment. kind is info, ok or error.
func Status(kind, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div id="status" class="status-%s">%s</div>`,
			templ.EscapeString(kind), templ.EscapeString(message))
		return err
	})
}

// Summary is the #summary fragment for a finished report.
func Summary(r *models.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		esc := templ.EscapeString[string]

		b.WriteString(`<div id="summary">`)
		fmt.Fprintf(&b, `<p>Run <code>%s</code> &middot; %s</p>`, esc(r.RunID), esc(r.Horizon))

		b.WriteString(`<div class="cards">`)
		card := func(label, value string) {
			fmt.Fprintf(&b, `<div class="card">%s<strong>%s</strong></div>`, esc(label), esc(value))
		}
		card("Total revenue", fmt.Sprintf("%.2f", r.KPIs.TotalRevenue))
		card("Units sold", fmt.Sprintf("%.0f", r.KPIs.TotalQuantity))
		card("Customers", fmt.Sprint(r.KPIs.UniqueCustomers))
		card("Products", fmt.Sprint(r.KPIs.UniqueProducts))
		card("Avg transaction", fmt.Sprintf("%.2f", r.KPIs.AvgTransactionValue))
		b.WriteString(`</div>`)

		fmt.Fprintf(&b, `<p>%s</p><p>%s</p>`, esc(r.ChurnSummary), esc(r.ForecastSummary))

		if len(r.DetailedInsights.Top5Customers) > 0 {
			b.WriteString(`<h2>Top customers</h2><table><thead><tr><th>#</th><th>Customer</th><th>Revenue</th><th>Visits</th></tr></thead><tbody>`)
			for _, c := range r.DetailedInsights.Top5Customers {
				fmt.Fprintf(&b, `<tr><td>%d</td><td>%s</td><td>%.2f</td><td>%d</td></tr>`, c.Rank, esc(c.CustomerID), c.Revenue, c.Visits)
			}
			b.WriteString(`</tbody></table>`)
		}

		if len(r.RandomForestModel.TopAtRiskCustomers) > 0 {
			b.WriteString(`<h2>Customers at risk</h2><table><thead><tr><th>Customer</th><th>Days inactive</th><th>Churn probability</th></tr></thead><tbody>`)
			for _, c := range r.RandomForestModel.TopAtRiskCustomers {
				fmt.Fprintf(&b, `<tr><td>%s</td><td>%d</td><td>%.0f%%</td></tr>`, esc(c.CustomerID), c.RecencyDays, 100*c.ChurnProbability)
			}
			b.WriteString(`</tbody></table>`)
		}

		if r.AssociationRules != nil && len(r.AssociationRules.Rules) > 0 {
			b.WriteString(`<h2>Bought together</h2><table><thead><tr><th>If</th><th>Then</th><th>Confidence</th><th>Lift</th></tr></thead><tbody>`)
			for i, rule := range r.AssociationRules.Rules {
				if i == 10 {
					break
				}
				fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%.2f</td><td>%.2f</td></tr>`,
					esc(strings.Join(rule.Antecedents, ", ")), esc(strings.Join(rule.Consequents, ", ")), rule.Confidence, rule.Lift)
			}
			b.WriteString(`</tbody></table>`)
		}

		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Render renders c to a string for SSE element patches.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
