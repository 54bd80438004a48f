package build

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/evansims/contentbuild/internal/aggregate"
	"github.com/evansims/contentbuild/internal/cache"
	"github.com/evansims/contentbuild/internal/content"
	"github.com/evansims/contentbuild/internal/errors"
	"github.com/evansims/contentbuild/internal/images"
	"github.com/evansims/contentbuild/internal/metrics"
	"github.com/evansims/contentbuild/internal/render"
)

// executor runs the units of one plan and collects per-item results for
// the aggregate pass.
type executor struct {
	o       *Orchestrator
	opts    Options
	store   *cache.Store
	report  *Report
	gen     *aggregate.Generator
	resolve render.LinkResolver

	docParams   string
	specSetHash string

	resMu    sync.Mutex
	docs     map[string]*render.Document
	variants map[string][]images.VariantResult
}

func newExecutor(o *Orchestrator, opts Options, store *cache.Store, report *Report, items []*content.Item) *executor {
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.Key()] = true
	}
	return &executor{
		o:      o,
		opts:   opts,
		store:  store,
		report: report,
		gen:    aggregate.NewGenerator(o.cfg),
		resolve: func(topic, slug string) bool {
			return known[topic+"/"+slug]
		},
		docParams:   docParamHash(o.cfg, PlanOptions{Force: opts.Force, SkipHTML: opts.SkipHTML, SkipJSON: opts.SkipJSON}),
		specSetHash: images.SpecSetHash(images.SpecsFromConfig(o.cfg.Images)),
		docs:        make(map[string]*render.Document),
		variants:    make(map[string][]images.VariantResult),
	}
}

// run executes the plan. Image work runs before document work because the
// per-item record files embed the variant list.
func (e *executor) run(ctx context.Context, plan *Plan) {
	var imageUnits, renderUnits []Unit
	for _, u := range plan.Units {
		if u.Kind == UnitImage {
			imageUnits = append(imageUnits, u)
		} else {
			renderUnits = append(renderUnits, u)
		}
	}

	for _, rp := range plan.Replays {
		if rp.Unit.Kind == UnitImage {
			e.replayImage(rp)
		}
	}
	runUnits(ctx, e.opts.Workers, imageUnits, func(u Unit) { e.runImage(ctx, u) })

	for _, rp := range plan.Replays {
		if rp.Unit.Kind == UnitRender {
			e.replayRender(rp)
		}
	}
	runUnits(ctx, e.opts.Workers, renderUnits, func(u Unit) { e.runRender(ctx, u) })
}

func (e *executor) runImage(ctx context.Context, unit Unit) {
	srcWidth, _, err := unit.Source.Bounds()
	if err != nil {
		e.report.AddWarning(asBuildError(err, errors.CategoryImageDecode))
		e.o.recorder.IncItemResult("image", metrics.ResultWarning)
		return
	}

	outputs := make(map[string]string)
	var results []images.VariantResult
	complete := true

	// Breakpoints wider than the source all clamp to the same output.
	// Specs arrive breakpoints-ascending, so the smallest requesting
	// breakpoint wins and the wider duplicates are dropped.
	type rendition struct {
		width  int
		format string
	}
	emitted := make(map[rendition]bool)

	for _, spec := range unit.Specs {
		if ctx.Err() != nil {
			complete = false
			break
		}
		if !images.FormatSupported(spec.Format) {
			e.report.AddWarning(errors.New(errors.CategoryImageVariant, errors.SeverityWarning,
				fmt.Sprintf("no encoder for %q, variant skipped", spec.Format)).
				WithContext("path", unit.Source.Path).
				WithContext("format", spec.Format))
			continue
		}
		clamped := spec.Width
		if clamped > srcWidth {
			clamped = srcWidth
		}
		if emitted[rendition{clamped, spec.Format}] {
			continue
		}
		emitted[rendition{clamped, spec.Format}] = true
		vr, err := images.TranscodeVariant(unit.Source, spec, unit.DestDir)
		if err != nil {
			// Encode and IO failures for one variant never abort the
			// siblings; the unit just will not be recorded.
			e.report.AddWarning(asBuildError(err, errors.CategoryImageVariant))
			complete = false
			continue
		}
		results = append(results, *vr)
		outputs[vr.Path] = vr.OutputHash
		e.o.recorder.IncVariant(spec.Format)
		e.report.mu.Lock()
		e.report.VariantsEncoded++
		if vr.Capped {
			e.report.VariantsCapped++
		}
		e.report.mu.Unlock()
	}

	e.addVariants(unit.Item.Key(), results)

	// Only fully materialized units are recorded. Missing encoders are a
	// capability gap, not a failure: the same specs would be skipped on
	// every run, so the produced set is still complete for this binary.
	if complete && ctx.Err() == nil && len(outputs) > 0 {
		e.store.Record(unit.Key, cache.Entry{
			Kind:       cache.KindImage,
			SourcePath: unit.Source.Path,
			Outputs:    outputs,
			ParamHash:  e.specSetHash,
		})
		e.o.recorder.IncItemResult("image", metrics.ResultSuccess)
	} else {
		e.o.recorder.IncItemResult("image", metrics.ResultWarning)
	}
}

// replayImage reconstructs variant metadata from cached outputs. The plan
// already verified every output's content hash, so only dimensions are
// re-read (a header decode, not a full decode).
func (e *executor) replayImage(rp Replay) {
	paths := make([]string, 0, len(rp.Entry.Outputs))
	for p := range rp.Entry.Outputs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var results []images.VariantResult
	for _, p := range paths {
		vr, err := variantFromFile(p, rp.Entry.Outputs[p], e.o.cfg.Images.Quality)
		if err != nil {
			e.report.AddWarning(asBuildError(err, errors.CategoryCache))
			continue
		}
		results = append(results, *vr)
		e.report.mu.Lock()
		e.report.VariantsCached++
		e.report.mu.Unlock()
	}
	e.addVariants(rp.Unit.Item.Key(), results)
	e.o.recorder.IncItemResult("image", metrics.ResultCached)
}

// variantFromFile rebuilds a VariantResult from an output file named
// "<stem>-<width>w.<format>". Dimensions come from the image header.
func variantFromFile(path, hash string, quality map[string]int) (*images.VariantResult, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	format := strings.TrimPrefix(ext, ".")
	stem := strings.TrimSuffix(base, ext)

	i := strings.LastIndex(stem, "-")
	if i < 0 || !strings.HasSuffix(stem[i+1:], "w") {
		return nil, errors.New(errors.CategoryCache, errors.SeverityWarning,
			"cached output has unexpected name").WithContext("path", path)
	}
	specWidth, err := strconv.Atoi(strings.TrimSuffix(stem[i+1:], "w"))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryCache, errors.SeverityWarning,
			"cached output has unexpected name").WithContext("path", path)
	}

	f, err := os.Open(path) // #nosec G304 - path came from the manifest we just verified
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryCache, errors.SeverityWarning,
			"cannot read cached output").WithContext("path", path)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryCache, errors.SeverityWarning,
			"cannot decode cached output").WithContext("path", path)
	}

	return &images.VariantResult{
		Spec:       images.VariantSpec{Width: specWidth, Format: format, Quality: quality[format]},
		Path:       path,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Capped:     cfg.Width < specWidth,
		OutputHash: hash,
	}, nil
}

func (e *executor) runRender(ctx context.Context, unit Unit) {
	doc, err := e.o.renderer.Render(unit.Item, e.resolve)
	if err != nil {
		e.renderProblem(err)
		return
	}

	rec := aggregate.Record{Item: unit.Item, Doc: doc, Variants: e.variantsFor(unit.Item.Key())}
	outputs, werr := e.gen.WriteItemRecord(rec, aggregate.RecordOptions{
		SkipJSON: e.opts.SkipJSON,
		SkipHTML: e.opts.SkipHTML,
	})
	if werr != nil {
		e.report.AddFailure(errors.Wrap(werr, errors.CategoryInternal, errors.SeverityError,
			"cannot write item record").WithContext("item", unit.Item.Key()))
		e.o.recorder.IncItemResult("render", metrics.ResultFailed)
		return
	}

	if ctx.Err() == nil && len(outputs) > 0 {
		e.store.Record(unit.Key, cache.Entry{
			Kind:       cache.KindDocument,
			SourcePath: unit.Item.SourcePath,
			Outputs:    outputs,
			ParamHash:  e.docParams,
		})
	}

	e.setDoc(unit.Item.Key(), doc)
	e.report.mu.Lock()
	e.report.DocumentsRendered++
	e.report.mu.Unlock()
	e.o.recorder.IncItemResult("render", metrics.ResultSuccess)
}

// replayRender recovers the rendered document from the cached record file
// so aggregates can be regenerated without re-rendering. Builds that skip
// the JSON record fall back to an in-memory render.
func (e *executor) replayRender(rp Replay) {
	for path := range rp.Entry.Outputs {
		if filepath.Base(path) != "index.json" {
			continue
		}
		data, err := os.ReadFile(path) // #nosec G304 - path came from the manifest we just verified
		if err != nil {
			break
		}
		var doc render.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			break
		}
		e.setDoc(rp.Unit.Item.Key(), &doc)
		e.report.mu.Lock()
		e.report.DocumentsCached++
		e.report.mu.Unlock()
		e.o.recorder.IncItemResult("render", metrics.ResultCached)
		return
	}

	doc, err := e.o.renderer.Render(rp.Unit.Item, e.resolve)
	if err != nil {
		e.renderProblem(err)
		return
	}
	e.setDoc(rp.Unit.Item.Key(), doc)
	e.report.mu.Lock()
	e.report.DocumentsCached++
	e.report.mu.Unlock()
	e.o.recorder.IncItemResult("render", metrics.ResultCached)
}

// renderProblem records a render error. Skipping the broken item is a
// warning by default; strict mode hard-fails it (the rest of the run is
// unaffected either way).
func (e *executor) renderProblem(err error) {
	be := asBuildError(err, errors.CategoryRender)
	if e.opts.Strict {
		e.report.AddFailure(be)
		e.o.recorder.IncItemResult("render", metrics.ResultFailed)
		return
	}
	e.report.AddWarning(be)
	e.o.recorder.IncItemResult("render", metrics.ResultWarning)
}

// aggregateAll regenerates every cross-item artifact from the items that
// produced a document this run. Items whose render failed drop out of the
// aggregates until they are fixed.
func (e *executor) aggregateAll(items []*content.Item) {
	e.resMu.Lock()
	records := make([]aggregate.Record, 0, len(items))
	for _, it := range items {
		doc, ok := e.docs[it.Key()]
		if !ok {
			continue
		}
		records = append(records, aggregate.Record{Item: it, Doc: doc, Variants: e.variants[it.Key()]})
	}
	e.resMu.Unlock()

	writers := []func([]aggregate.Record) (string, error){
		e.gen.WriteFeed,
		e.gen.WriteSitemap,
		e.gen.WriteLLMS,
		e.gen.WriteLLMSFull,
	}
	for _, write := range writers {
		if path, err := write(records); err != nil {
			e.report.AddFailure(errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "aggregate generation failed"))
		} else {
			e.o.logger.Debug("Aggregate written", "path", path)
		}
	}
}

func (e *executor) setDoc(key string, doc *render.Document) {
	e.resMu.Lock()
	defer e.resMu.Unlock()
	e.docs[key] = doc
}

func (e *executor) addVariants(key string, results []images.VariantResult) {
	if len(results) == 0 {
		return
	}
	e.resMu.Lock()
	defer e.resMu.Unlock()
	e.variants[key] = append(e.variants[key], results...)
}

// variantsFor returns the item's variants in path order so record files
// are byte-stable regardless of worker scheduling.
func (e *executor) variantsFor(key string) []images.VariantResult {
	e.resMu.Lock()
	out := append([]images.VariantResult(nil), e.variants[key]...)
	e.resMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// asBuildError normalizes any error into a BuildError for reporting.
func asBuildError(err error, fallback errors.Category) *errors.BuildError {
	var be *errors.BuildError
	if stderrors.As(err, &be) {
		return be
	}
	return errors.Wrap(err, fallback, errors.SeverityError, err.Error())
}
