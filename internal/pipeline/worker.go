package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storyforge/internal/adf"
	"storyforge/internal/artifacts"
	"storyforge/internal/figma"
	"storyforge/internal/generate"
	"storyforge/internal/jira"
	"storyforge/internal/shell"
)

// Worker expands the shell stories of a single epic.
type Worker struct {
	jira     *jira.Client
	figma    *figma.Client
	claude   *generate.ClaudeClient
	cache    *artifacts.Store
	renderer *adf.Renderer
	log      *slog.Logger

	sectionLabel          string
	projectKey            string
	maxConcurrentGenerate int
}

func NewWorker(jc *jira.Client, fc *figma.Client, claude *generate.ClaudeClient,
	cache *artifacts.Store, log *slog.Logger, sectionLabel, projectKey string, maxGenerate int) *Worker {
	return &Worker{
		jira:                  jc,
		figma:                 fc,
		claude:                claude,
		cache:                 cache,
		renderer:              adf.NewRenderer(log),
		log:                   log,
		sectionLabel:          sectionLabel,
		projectKey:            projectKey,
		maxConcurrentGenerate: maxGenerate,
	}
}

// Process runs the full expansion pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "epic", job.EpicKey)

	// Phase 1: Fetch the epic.
	job.SetStatus(StatusFetching, "fetching")
	epic, err := w.jira.GetIssue(ctx, job.EpicKey)
	if err != nil {
		log.Error("fetch epic failed", "error", err)
		job.AddError(fmt.Sprintf("fetch: %s", err))
		job.SetStatus(StatusFailed, "fetching")
		return
	}
	if epic.Description == nil {
		job.AddError("epic has no rich-text description")
		job.SetStatus(StatusFailed, "fetching")
		return
	}

	// Phase 2: Extract the section and parse the roster. A missing or
	// duplicated section is a policy error here, even though the
	// extractor itself tolerates both.
	job.SetStatus(StatusParsing, "parsing")
	content := epic.Description.Content
	switch n := adf.CountSections(content, w.sectionLabel); {
	case n == 0:
		job.AddError(fmt.Sprintf("no %q section in %s", w.sectionLabel, job.EpicKey))
		job.SetStatus(StatusFailed, "parsing")
		return
	case n > 1:
		job.AddError(fmt.Sprintf("%d %q sections in %s; fix the epic before expanding", n, w.sectionLabel, job.EpicKey))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	section, remainder := adf.ExtractSection(content, w.sectionLabel)

	records, err := shell.ParseRecords(section)
	if err != nil {
		log.Error("parse shell stories failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	selected, err := selectRecords(records, job)
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetTotalStories(len(selected))
	if len(selected) == 0 {
		log.Info("nothing to expand")
		job.SetStatus(StatusCompleted, "done")
		return
	}

	roster := make(map[string]shell.Record, len(records))
	for _, r := range records {
		roster[r.ID] = r
	}
	epicContext := w.renderer.Render(remainder)
	if epicContext == "" {
		epicContext = epic.RenderedDescription
	}

	// Phase 3: Draft story bodies with bounded concurrency.
	job.SetStatus(StatusGenerating, "generating")
	drafts := w.draftAll(ctx, log, job, epic, selected, roster, epicContext)

	// Phase 4: Publish serially. Writes to the epic description are a
	// read-modify-write cycle with no transaction on the tracker side,
	// so this phase never runs concurrently for one epic.
	job.SetStatus(StatusPublishing, "publishing")
	created := false
	hadErrors := false
	for i, rec := range selected {
		if drafts[i] == "" {
			hadErrors = true
			continue
		}
		nodes, err := adf.FromMarkdown([]byte(drafts[i]))
		if err != nil {
			log.Error("draft conversion failed", "story", rec.ID, "error", err)
			job.AddError(fmt.Sprintf("%s: convert draft: %s", rec.ID, err))
			hadErrors = true
			continue
		}

		key, err := w.jira.CreateIssue(ctx, jira.NewIssue{
			ProjectKey:  w.projectKey,
			Summary:     rec.Title,
			ParentKey:   job.EpicKey,
			Description: adf.NewDoc(nodes),
			Labels:      []string{"storyforge"},
		})
		if err != nil {
			log.Error("create issue failed", "story", rec.ID, "error", err)
			job.AddError(fmt.Sprintf("%s: create issue: %s", rec.ID, err))
			hadErrors = true
			continue
		}
		created = true
		job.AddIssue(key)
		log.Info("story issue created", "story", rec.ID, "issue", key)

		marked, err := shell.MarkCompleted(section, rec.ID, w.jira.BrowseURL(key), time.Now())
		if err != nil {
			// The issue exists; only the epic bookkeeping failed.
			log.Error("completion marking failed", "story", rec.ID, "issue", key, "error", err)
			job.AddError(fmt.Sprintf("%s: issue %s created but marking failed: %s", rec.ID, key, err))
			hadErrors = true
			continue
		}
		section = marked
	}

	updateFailed := false
	if created {
		doc := adf.NewDoc(append(remainder, section...))
		if err := w.jira.UpdateDescription(ctx, job.EpicKey, doc); err != nil {
			log.Error("epic update failed", "error", err)
			job.AddError(fmt.Sprintf("issues %v created but epic update failed: %s",
				job.Snapshot().Progress.IssuesCreated, err))
			updateFailed = true
		}
	}

	switch {
	case created && (hadErrors || updateFailed):
		job.SetStatus(StatusPartial, "done")
	case created:
		job.SetStatus(StatusCompleted, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "publishing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

// selectRecords picks which shell stories the job expands.
func selectRecords(records []shell.Record, job *Job) ([]shell.Record, error) {
	if job.StoryID == "" {
		var pending []shell.Record
		for _, r := range records {
			if !r.Completed() {
				pending = append(pending, r)
			}
		}
		return pending, nil
	}
	for _, r := range records {
		if r.ID != job.StoryID {
			continue
		}
		if r.Completed() && !job.Force {
			return nil, fmt.Errorf("story %s already completed (%s)", r.ID, r.ReferenceURL)
		}
		return []shell.Record{r}, nil
	}
	return nil, fmt.Errorf("story %s not found in %q section", job.StoryID, job.EpicKey)
}

// draftAll produces a markdown draft per selected record; a failed record
// leaves an empty string at its index.
func (w *Worker) draftAll(ctx context.Context, log *slog.Logger, job *Job, epic *jira.Issue,
	selected []shell.Record, roster map[string]shell.Record, epicContext string) []string {

	drafts := make([]string, len(selected))
	type result struct {
		idx       int
		draft     string
		fromCache bool
		err       error
	}
	results := make(chan result, len(selected))
	sem := make(chan struct{}, w.maxConcurrentGenerate)

	for i, rec := range selected {
		sem <- struct{}{}
		go func(i int, rec shell.Record) {
			defer func() { <-sem }()
			draft, fromCache, err := w.draftOne(ctx, log, job, epic, rec, roster, epicContext)
			results <- result{idx: i, draft: draft, fromCache: fromCache, err: err}
		}(i, rec)
	}

	for range selected {
		r := <-results
		if r.err != nil {
			log.Error("draft failed", "story", selected[r.idx].ID, "error", r.err)
			job.AddError(fmt.Sprintf("%s: %s", selected[r.idx].ID, r.err))
			continue
		}
		drafts[r.idx] = r.draft
		job.IncrDrafted(r.fromCache)
	}
	return drafts
}

func (w *Worker) draftOne(ctx context.Context, log *slog.Logger, job *Job, epic *jira.Issue,
	rec shell.Record, roster map[string]shell.Record, epicContext string) (string, bool, error) {

	deps := make(map[string]string, len(rec.Dependencies))
	for _, dep := range rec.Dependencies {
		depRec, ok := roster[dep]
		if !ok {
			return "", false, fmt.Errorf("depends on unknown story %q", dep)
		}
		deps[dep] = depRec.ReferenceURL
	}

	screens := w.fetchScreens(ctx, log, job, rec)

	digest := artifacts.Digest(strings.Join([]string{
		rec.ID, rec.Title, rec.Description,
		strings.Join(rec.Screens, ","),
		strings.Join(rec.Dependencies, ","),
	}, "\n"))
	cacheKey := artifacts.Key(job.EpicKey, rec.ID, digest)

	if !job.Force {
		if draft, ok, err := w.cache.Get(cacheKey); err != nil {
			log.Warn("cache read failed", "story", rec.ID, "error", err)
		} else if ok {
			log.Info("draft from cache", "story", rec.ID)
			return draft, true, nil
		}
	}

	prompt := generate.BuildPrompt(generate.PromptInput{
		EpicKey:      job.EpicKey,
		EpicSummary:  epic.Summary,
		EpicContext:  epicContext,
		Record:       rec,
		Screens:      screens,
		Dependencies: deps,
	})

	var draft string
	var lastErr error
	for attempt := range MaxRetries {
		draft, lastErr = w.claude.DraftStory(ctx, prompt)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable draft error", "story", rec.ID, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	if lastErr != nil {
		return "", false, lastErr
	}

	if err := w.cache.Put(cacheKey, job.EpicKey, rec.ID, draft, w.claude.Model()); err != nil {
		log.Warn("cache write failed", "story", rec.ID, "error", err)
	}
	return draft, false, nil
}

// fetchScreens resolves the record's screen links into node metadata and
// rendered image URLs. Design-tool failures degrade to an empty screen list
// with a job error; they never sink the whole draft.
func (w *Worker) fetchScreens(ctx context.Context, log *slog.Logger, job *Job, rec shell.Record) []figma.Screen {
	byFile := make(map[string][]string)
	var order []string
	for _, raw := range rec.Screens {
		ref, err := figma.ParseScreenURL(raw)
		if err != nil {
			log.Warn("bad screen url", "story", rec.ID, "url", raw, "error", err)
			job.AddError(fmt.Sprintf("%s: %s", rec.ID, err))
			continue
		}
		if _, seen := byFile[ref.FileKey]; !seen {
			order = append(order, ref.FileKey)
		}
		byFile[ref.FileKey] = append(byFile[ref.FileKey], ref.NodeID)
	}

	var screens []figma.Screen
	for _, fileKey := range order {
		ids := byFile[fileKey]
		nodes, err := w.figma.GetNodes(ctx, fileKey, ids)
		if err != nil {
			log.Warn("figma metadata fetch failed", "story", rec.ID, "file", fileKey, "error", err)
			job.AddError(fmt.Sprintf("%s: figma %s: %s", rec.ID, fileKey, err))
			continue
		}
		images, err := w.figma.GetImages(ctx, fileKey, ids)
		if err != nil {
			log.Warn("figma image render failed", "story", rec.ID, "file", fileKey, "error", err)
			images = nil
		}
		for _, n := range nodes {
			n.ImageURL = images[n.NodeID]
			screens = append(screens, n)
		}
	}
	return screens
}
