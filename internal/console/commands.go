package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/analysis"
	"github.com/KaramelBytes/socialhub-cli/internal/chat"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/editor"
	"github.com/KaramelBytes/socialhub-cli/internal/ingest"
	"github.com/KaramelBytes/socialhub-cli/internal/ml"
	"github.com/KaramelBytes/socialhub-cli/internal/notify"
	"github.com/KaramelBytes/socialhub-cli/internal/session"
	"github.com/KaramelBytes/socialhub-cli/internal/task"
	"github.com/KaramelBytes/socialhub-cli/internal/views"
)

// DefaultShowRows is how many rows `show` prints without an argument.
const DefaultShowRows = 10

var errNoData = errors.New("no data loaded, use 'load <file>' first")

func (c *Console) table() map[string]command {
	return map[string]command{
		"help":       {usage: "help", help: "list commands", run: c.help},
		"load":       {usage: "load <file.csv>", help: "load a CSV file, replacing the current dataset", run: c.load},
		"show":       {usage: "show [n]", help: "print the first n rows", run: c.show},
		"headers":    {usage: "headers", help: "list column headers", run: c.headers},
		"edit":       {usage: "edit <column>", help: "start renaming a column", run: c.edit},
		"type":       {usage: "type <text>", help: "replace the rename buffer", raw: true, run: c.typeText},
		"commit":     {usage: "commit", help: "apply the pending rename", run: c.commit},
		"cancel":     {usage: "cancel", help: "discard the pending rename", run: c.cancel},
		"rename":     {usage: "rename <old> <new>", help: "rename a column in one step", run: c.rename},
		"nulls":      {usage: "nulls", help: "replace empty and null cells with N/A", run: c.nulls},
		"dedupe":     {usage: "dedupe", help: "drop duplicate rows", run: c.dedupe},
		"normalize":  {usage: "normalize", help: "min-max scale numeric columns", run: c.normalizeCmd},
		"numeric":    {usage: "numeric", help: "list numeric columns", run: c.numeric},
		"platforms":  {usage: "platforms", help: "list platform filter values", run: c.platforms},
		"kpis":       {usage: "kpis [platform]", help: "show KPI cards", run: c.kpis},
		"chart":      {usage: "chart [platform]", help: "show the engagement chart series", run: c.chart},
		"eda":        {usage: "eda", help: "print the exploratory report", run: c.eda},
		"target":     {usage: "target <column>", help: "select the prediction target", run: c.target},
		"model":      {usage: "model <type>", help: "regression|classification (or lightgbm|catboost)", run: c.model},
		"train":      {usage: "train", help: "train the selected model", run: c.train},
		"predict":    {usage: "predict k=v ...", help: "predict the target from feature values", run: c.predict},
		"explain":    {usage: "explain k=v ...", help: "ask the assistant for a reasoned prediction", run: c.explain},
		"untrain":    {usage: "untrain", help: "forget the trained model", run: c.untrain},
		"history":    {usage: "history", help: "list recent training runs", run: c.history},
		"chat":       {usage: "chat <text>", help: "ask the data assistant", raw: true, run: c.chatCmd},
		"transcript": {usage: "transcript", help: "print the chat transcript", run: c.transcript},
		"login":      {usage: "login", help: "sign in with the demo account", run: c.login},
		"logout":     {usage: "logout", help: "sign out", run: c.logout},
		"whoami":     {usage: "whoami", help: "show the signed-in user", run: c.whoami},
		"reset":      {usage: "reset", help: "clear the dataset and all derived state", run: c.reset},
	}
}

func (c *Console) load(_ context.Context, args []string) notify.Notice {
	if len(args) == 0 {
		return notify.Error("usage: load <file.csv>")
	}
	t, err := ingest.IngestFile(args[0])
	if err != nil {
		c.log.Warn("load failed", zap.String("file", args[0]), zap.Error(err))
		return ingest.FailureNotice(err)
	}
	c.editor.Cancel()
	c.store.LoadDataset(t.Rows, t.Headers)
	if len(t.Renamed) > 0 {
		keys := make([]string, 0, len(t.Renamed))
		for k := range t.Renamed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		c.notice(notify.Warning("duplicate headers renamed: %s", strings.Join(keys, ", ")))
	}
	return t.Notice()
}

func (c *Console) show(_ context.Context, args []string) notify.Notice {
	ds := c.store.Snapshot()
	if ds.Empty() {
		return notify.Info("%v", errNoData)
	}
	n := DefaultShowRows
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return notify.Error("invalid row count %q", args[0])
		}
		n = v
	}
	if n > len(ds.Rows) {
		n = len(ds.Rows)
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]string, len(ds.Headers))
		for j, h := range ds.Headers {
			rows[i][j] = ds.Rows[i][h]
		}
	}
	c.printTable(ds.Headers, rows)
	return notify.Info("showing %d of %d rows", n, len(ds.Rows))
}

func (c *Console) headers(_ context.Context, _ []string) notify.Notice {
	hs := c.store.Headers()
	if len(hs) == 0 {
		return notify.Info("%v", errNoData)
	}
	for i, h := range hs {
		c.printf("%3d  %s\n", i+1, h)
	}
	return notify.Notice{}
}

func (c *Console) edit(_ context.Context, args []string) notify.Notice {
	if len(args) != 1 {
		return notify.Error("usage: edit <column>")
	}
	ds := c.store.Snapshot()
	if !ds.HasColumn(args[0]) {
		return notify.Error("unknown column %q", args[0])
	}
	c.editor.Begin(args[0])
	return notify.Info("editing %q; use 'type <name>' then 'commit'", args[0])
}

func (c *Console) typeText(_ context.Context, args []string) notify.Notice {
	if err := c.editor.Type(args[0]); err != nil {
		return notify.FromError(err)
	}
	return notify.Notice{}
}

func (c *Console) commit(_ context.Context, _ []string) notify.Notice {
	if c.editor.State() != editor.Editing {
		return notify.FromError(editor.ErrNotEditing)
	}
	out := c.editor.Commit()
	if out.Notice.IsZero() {
		return notify.Info("column name unchanged")
	}
	return out.Notice
}

func (c *Console) cancel(_ context.Context, _ []string) notify.Notice {
	c.editor.Cancel()
	return notify.Notice{}
}

func (c *Console) rename(ctx context.Context, args []string) notify.Notice {
	if len(args) != 2 {
		return notify.Error("usage: rename <old> <new>")
	}
	c.editor.Begin(args[0])
	_ = c.editor.Type(args[1])
	return c.commit(ctx, nil)
}

func (c *Console) nulls(_ context.Context, _ []string) notify.Notice {
	if c.store.Len() == 0 {
		return notify.Info("%v", errNoData)
	}
	n := c.store.ReplaceNulls()
	c.store.MarkStep("nulls")
	return notify.Success("Replaced %d null values", n)
}

func (c *Console) dedupe(_ context.Context, _ []string) notify.Notice {
	if c.store.Len() == 0 {
		return notify.Info("%v", errNoData)
	}
	n := c.store.DropDuplicates()
	c.store.MarkStep("duplicates")
	return notify.Success("Removed %d duplicate rows", n)
}

// normalizeCmd runs the normalization plan and then rescales the numeric
// columns of the dataset that was loaded when it started.
func (c *Console) normalizeCmd(ctx context.Context, _ []string) notify.Notice {
	_, _, gen := c.store.State()
	if c.store.Len() == 0 {
		return notify.Info("%v", errNoData)
	}
	if err := c.runner.Run(ctx, c.normalize, c.progress); err != nil {
		return notify.FromError(fmt.Errorf("normalize: %w", err))
	}
	var cols []string
	if !c.store.UpdateAt(gen, func(d *dataset.Dataset, _ *dataset.Scratch) { cols = d.NormalizeNumeric() }) {
		return notify.FromError(ml.ErrSuperseded)
	}
	c.store.MarkStep("normalize")
	if len(cols) == 0 {
		return notify.Info("no numeric columns to normalize")
	}
	return notify.Success("Normalized %d columns: %s", len(cols), strings.Join(cols, ", "))
}

func (c *Console) progress(t task.Tick) {
	if t.Done {
		c.printf("\r%s: 100%%\n", t.Plan)
		return
	}
	c.printf("\r%s: %.0f%%", t.Plan, t.Progress)
}

func (c *Console) numeric(_ context.Context, _ []string) notify.Notice {
	cols := views.NumericColumns(c.store.Snapshot())
	if len(cols) == 0 {
		return notify.Info("no numeric columns")
	}
	c.printf("%s\n", strings.Join(cols, ", "))
	return notify.Notice{}
}

func (c *Console) platforms(_ context.Context, _ []string) notify.Notice {
	domain := views.PlatformDomain(c.store.Snapshot())
	if len(domain) == 0 {
		domain = []string{views.AllPlatforms}
	}
	c.printf("%s\n", strings.Join(domain, ", "))
	return notify.Notice{}
}

func selection(args []string) string {
	if len(args) == 0 {
		return views.AllPlatforms
	}
	return args[0]
}

func (c *Console) kpis(_ context.Context, args []string) notify.Notice {
	sel := selection(args)
	cards := views.ComputeKPIs(c.store.Snapshot(), sel).Cards()
	if len(cards) == 0 {
		return notify.Info("no records for %q", sel)
	}
	rows := make([][]string, len(cards))
	for i, card := range cards {
		rows[i] = []string{card.Title, card.Value}
	}
	c.printTable([]string{"KPI", "Value"}, rows)
	return notify.Notice{}
}

func (c *Console) chart(_ context.Context, args []string) notify.Notice {
	pts := views.ChartSeries(c.store.Snapshot(), selection(args), views.ChartLimit)
	if len(pts) == 0 {
		return notify.Info("no records to chart")
	}
	rows := make([][]string, len(pts))
	for i, p := range pts {
		rows[i] = []string{
			p.Name,
			dataset.FormatNumber(p.Engagement),
			dataset.FormatNumber(p.Reach),
			dataset.FormatNumber(p.Likes),
			dataset.FormatNumber(p.Shares),
			dataset.FormatNumber(p.Comments),
			dataset.FormatNumber(p.Sentiment),
		}
	}
	c.printTable([]string{"Name", "Engagement", "Reach", "Likes", "Shares", "Comments", "Sentiment"}, rows)
	return notify.Notice{}
}

func (c *Console) eda(_ context.Context, _ []string) notify.Notice {
	ds := c.store.Snapshot()
	if ds.Empty() {
		return notify.Info("%v", errNoData)
	}
	c.printf("%s", analysis.Analyze("dataset", ds, analysis.DefaultOptions()).Markdown())
	return notify.Notice{}
}

func (c *Console) target(_ context.Context, args []string) notify.Notice {
	if len(args) != 1 {
		return notify.Error("usage: target <column>")
	}
	ds := c.store.Snapshot()
	if !ds.HasColumn(args[0]) {
		return notify.Error("unknown column %q", args[0])
	}
	c.store.SetTargetColumn(args[0])
	return notify.Success("Target column set to %q", args[0])
}

func (c *Console) model(_ context.Context, args []string) notify.Notice {
	if len(args) != 1 {
		return notify.Error("usage: model <regression|classification>")
	}
	algo, ok := ml.LookupAlgorithm(args[0])
	if !ok {
		return notify.Error("unknown model type %q", args[0])
	}
	c.store.SetModelType(algo.Type)
	return notify.Success("Using %s", algo.Label)
}

func (c *Console) train(ctx context.Context, _ []string) notify.Notice {
	res, err := c.trainer.Train(ctx, c.progress)
	if err != nil {
		return notify.FromError(err)
	}
	keys := make([]string, 0, len(res.Metrics))
	for k := range res.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, strconv.FormatFloat(res.Metrics[k], 'f', 4, 64)}
	}
	c.printTable([]string{"Metric", "Value"}, rows)
	return notify.Success("%s model trained successfully (%s)", res.Algorithm.Name, res.Run.ModelID)
}

func parsePairs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected column=value, got %q", a)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func (c *Console) predict(ctx context.Context, args []string) notify.Notice {
	values, err := parsePairs(args)
	if err != nil {
		return notify.FromError(err)
	}
	p, err := c.trainer.Predict(ctx, ml.PredictRequest{Values: values})
	if err != nil {
		return notify.FromError(err)
	}
	c.printf("%s: %s\n", p.Target, p.Value)
	if p.Confidence > 0 {
		c.printf("confidence: %d%%\n", p.Confidence)
	}
	return notify.Success("Prediction generated with %s", p.Algorithm)
}

func (c *Console) explain(ctx context.Context, args []string) notify.Notice {
	if c.chat == nil {
		return notify.FromError(chat.ErrMissingAPIKey)
	}
	values, err := parsePairs(args)
	if err != nil {
		return notify.FromError(err)
	}
	sc := c.store.Scratch()
	if sc.TargetColumn == "" {
		return notify.FromError(ml.ErrNoTarget)
	}
	text, err := c.chat.PredictWithContext(ctx, sc.TargetColumn, values)
	if err != nil {
		return notify.FromError(err)
	}
	c.printf("%s\n", text)
	return notify.Notice{}
}

func (c *Console) untrain(_ context.Context, _ []string) notify.Notice {
	c.store.ClearTraining()
	return notify.Info("model cleared")
}

func (c *Console) history(_ context.Context, _ []string) notify.Notice {
	h := c.store.Scratch().History
	if len(h) == 0 {
		return notify.Info("no training runs yet")
	}
	rows := make([][]string, len(h))
	for i, r := range h {
		rows[i] = []string{r.ModelID, r.Algorithm, strconv.Itoa(r.DatasetSize), strconv.Itoa(r.Features), r.Status, r.At.Format("2006-01-02 15:04:05")}
	}
	c.printTable([]string{"Model", "Algorithm", "Rows", "Features", "Status", "Trained"}, rows)
	return notify.Notice{}
}

func (c *Console) chatCmd(ctx context.Context, args []string) notify.Notice {
	if c.chat == nil {
		return notify.FromError(chat.ErrMissingAPIKey)
	}
	reply, err := c.chat.Send(ctx, args[0])
	if reply != "" {
		c.printf("assistant: %s\n", reply)
	}
	if err != nil {
		c.log.Warn("chat failed", zap.Error(err))
		return notify.FromError(err)
	}
	return notify.Notice{}
}

func (c *Console) transcript(_ context.Context, _ []string) notify.Notice {
	t := c.store.Scratch().Transcript
	if len(t) == 0 {
		return notify.Info("no messages yet")
	}
	for _, m := range t {
		c.printf("%s: %s\n", m.Role, m.Content)
	}
	return notify.Notice{}
}

func (c *Console) login(_ context.Context, _ []string) notify.Notice {
	if c.session == nil {
		return notify.Warning("sessions are not configured")
	}
	if _, err := c.session.SignIn(session.MockUser); err != nil {
		return notify.FromError(fmt.Errorf("sign in: %w", err))
	}
	return notify.Success("Signed in as %s", session.MockUser.Name)
}

func (c *Console) logout(_ context.Context, _ []string) notify.Notice {
	if c.session == nil {
		return notify.Warning("sessions are not configured")
	}
	if err := c.session.SignOut(); err != nil {
		return notify.FromError(fmt.Errorf("sign out: %w", err))
	}
	return notify.Success("Signed out")
}

func (c *Console) whoami(_ context.Context, _ []string) notify.Notice {
	if c.session == nil {
		return notify.Warning("sessions are not configured")
	}
	u, err := c.session.Current()
	if err != nil {
		return notify.FromError(err)
	}
	if u == nil {
		return notify.Info("not signed in")
	}
	c.printf("%s <%s> %s\n", u.Name, u.Email, u.Role)
	return notify.Notice{}
}

func (c *Console) reset(_ context.Context, _ []string) notify.Notice {
	c.editor.Cancel()
	c.store.ResetAll()
	return notify.Success("All data cleared")
}

func (c *Console) printTable(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}
