package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/delta"
	"github.com/flo-mic/osbctl/internal/deploy"
	"github.com/flo-mic/osbctl/internal/inventory"
	"github.com/flo-mic/osbctl/internal/journal"
)

func render(w io.Writer, title string, headers []string, rows [][]string, digest bool) {
	if title != "" {
		fmt.Fprintln(w, titleStyle.Render(title))
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("(none)"))
	} else {
		fmt.Fprintln(w, newTable(headers, rows).Render())
	}
	if digest {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d row(s)  digest %s", len(rows), delta.HashRows(rows))))
	}
}

// Environments prints the catalog grouped by PROD/QA/TEST/DEV. current is marked with *.
func Environments(w io.Writer, c *config.Catalog, current string) {
	rows := c.Grouped()
	for _, row := range rows {
		for i, name := range row {
			if name != "" && name == current {
				row[i] = name + " *"
			}
		}
	}
	render(w, "Environments", config.Groups, rows, false)
}

// EnvironmentIndex prints every profile with its selection index.
func EnvironmentIndex(w io.Writer, profiles []config.EnvironmentProfile) {
	rows := make([][]string, 0, len(profiles))
	for i, p := range profiles {
		rows = append(rows, []string{strconv.Itoa(i), p.Name, p.Group, p.Endpoint, p.Username})
	}
	render(w, "", []string{"#", "Name", "Group", "URL", "User"}, rows, false)
}

// Projects prints project names.
func Projects(w io.Writer, env string, projects []string) {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p})
	}
	render(w, fmt.Sprintf("Projects on %s", env), []string{"Project"}, rows, true)
}

// ServiceRows flattens services into project, path, URI, work manager, state, monitoring.
func ServiceRows(services []api.Service) [][]string {
	rows := make([][]string, 0, len(services))
	for _, s := range services {
		rows = append(rows, []string{s.Project(), s.Path, s.URI, s.WorkManager, onOff(s.Enabled), onOff(s.MonitoringEnabled)})
	}
	return rows
}

// Services prints a service listing.
func Services(w io.Writer, env string, kind api.ServiceKind, services []api.Service) {
	render(w, fmt.Sprintf("%s services on %s", titleCase(string(kind)), env),
		[]string{"Project", "Path", "URI", "Work manager", "Enabled", "Monitoring"}, ServiceRows(services), true)
}

// Details prints one project's services and referenced resources.
func Details(w io.Writer, env string, d *inventory.Details) {
	render(w, fmt.Sprintf("Project %s on %s", d.Project, env),
		[]string{"Project", "Path", "URI", "Work manager", "Enabled", "Monitoring"}, ServiceRows(d.Services), true)
	rows := [][]string{}
	for _, wm := range d.WorkManagers {
		rows = append(rows, []string{string(inventory.ResourceWorkManager), wm})
	}
	for _, q := range d.Queues {
		rows = append(rows, []string{string(inventory.ResourceQueue), q})
	}
	render(w, "Referenced resources", []string{"Kind", "Name"}, rows, false)
}

// Plan prints everything an undeploy would remove, in execution order, and which shared resources stay.
func Plan(w io.Writer, p *inventory.Plan) {
	rows := [][]string{{"project", p.Project, "remove"}}
	for _, q := range p.QueuesToRemove {
		rows = append(rows, []string{string(inventory.ResourceQueue), q, "remove"})
	}
	for _, d := range p.ErrorDestinationsToRemove {
		rows = append(rows, []string{string(d.Kind), d.Name, "remove (only used by " + strings.Join(d.UsedBy, ", ") + ")"})
	}
	for _, wm := range p.WorkManagersToRemove {
		rows = append(rows, []string{string(inventory.ResourceWorkManager), wm, "remove"})
	}
	for _, c := range p.ConstraintsToRemove {
		rows = append(rows, []string{string(c.Kind), c.Name, "remove (only used by " + strings.Join(c.UsedBy, ", ") + ")"})
	}
	for _, s := range p.Shared {
		rows = append(rows, []string{string(s.Kind), s.Name, "keep (used by " + strings.Join(s.Owners, ", ") + ")"})
	}
	title := "Undeploy plan for " + p.Project
	if p.Environment != "" {
		title += " on " + p.Environment
	}
	render(w, title, []string{"Kind", "Name", "Action"}, rows, false)
}

// Undeploy prints every executed step.
func Undeploy(w io.Writer, res *deploy.UndeployResult) {
	rows := make([][]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		}
		rows = append(rows, []string{o.Kind, o.Name, string(o.Status), detail})
	}
	render(w, "Undeploy of "+res.Project, []string{"Kind", "Name", "Result", "Detail"}, rows, false)
}

// Batch prints the per-path outcome of an enable/disable toggle.
func Batch(w io.Writer, title string, res deploy.BatchResult) {
	rows := make([][]string, 0, len(res))
	for _, p := range res.Paths() {
		rows = append(rows, []string{p, res[p].String()})
	}
	render(w, title, []string{"Path", "Result"}, rows, false)
	if n := res.Failed(); n > 0 {
		fmt.Fprintln(w, Warning(fmt.Sprintf("%d of %d path(s) failed", n, len(res))))
	}
	fmt.Fprintln(w, mutedStyle.Render("* already in the requested state"))
}

// Sessions prints open change sessions.
func Sessions(w io.Writer, env string, names []string) {
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		rows = append(rows, []string{n})
	}
	render(w, "Open change sessions on "+env, []string{"Session"}, rows, false)
}

// History prints journal entries.
func History(w io.Writer, entries []journal.Entry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Time.Local().Format(time.DateTime), e.Environment, e.Action, e.Target, e.Status, e.Detail})
	}
	render(w, "History", []string{"Time", "Env", "Action", "Target", "Status", "Detail"}, rows, false)
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
