package transform

import (
	"time"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/metrics"
	"github.com/lox/co2pipeline/internal/models"
)

// Options configures the pipeline. Zero fields take the defaults.
type Options struct {
	MeasurementColumn string
	TimestampColumn   string
	Timezone          string
	EMASpan           int
}

func DefaultOptions() Options {
	return Options{
		MeasurementColumn: DefaultMeasurementColumn,
		TimestampColumn:   DefaultTimestampColumn,
		Timezone:          DefaultTimezone,
		EMASpan:           DefaultEMASpan,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MeasurementColumn == "" {
		o.MeasurementColumn = def.MeasurementColumn
	}
	if o.TimestampColumn == "" {
		o.TimestampColumn = def.TimestampColumn
	}
	if o.Timezone == "" {
		o.Timezone = def.Timezone
	}
	if o.EMASpan == 0 {
		o.EMASpan = def.EMASpan
	}
	return o
}

// OutputColumns is the fixed leading column order of a transformed table.
func (o Options) OutputColumns() []string {
	o = o.withDefaults()
	return []string{
		EntityColumn,
		OutputMeasurement,
		ImputedColumn(o.MeasurementColumn),
		EMAColumn(o.EMASpan),
		o.TimestampColumn,
	}
}

// ReadingColumns maps the transformed output onto models.Reading fields.
func (o Options) ReadingColumns() models.ReadingColumns {
	cols := o.OutputColumns()
	return models.ReadingColumns{
		EntityID:   cols[0],
		CO2PPM:     cols[1],
		Imputed:    cols[2],
		EMA:        cols[3],
		ObservedAt: cols[4],
	}
}

// Stage is one step of the pipeline.
type Stage struct {
	Name  string
	Apply func(*models.Table) (*models.Table, error)
}

// Pipeline runs the five cleaning stages in their fixed order. It is built
// for a single pass over raw data: its output no longer has the measurement
// column under its input name, so feeding it back in fails at the first stage.
type Pipeline struct {
	opts   Options
	stages []Stage
}

func NewPipeline(opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		opts: opts,
		stages: []Stage{
			{Name: stageNumeric, Apply: func(t *models.Table) (*models.Table, error) {
				return ConvertToNumeric(t, opts.MeasurementColumn)
			}},
			{Name: stageDatetime, Apply: func(t *models.Table) (*models.Table, error) {
				return ConvertToDatetime(t, opts.TimestampColumn, opts.Timezone)
			}},
			{Name: stageFill, Apply: func(t *models.Table) (*models.Table, error) {
				return FillNulls(t, opts.MeasurementColumn)
			}},
			{Name: stageEMA, Apply: func(t *models.Table) (*models.Table, error) {
				return AddEMA(t, opts.MeasurementColumn, opts.EMASpan)
			}},
			{Name: stageRename, Apply: func(t *models.Table) (*models.Table, error) {
				return renameAndReorder(t, opts)
			}},
		},
	}
}

func (p *Pipeline) Options() Options { return p.opts }

// Stages returns the stage list in execution order.
func (p *Pipeline) Stages() []Stage { return append([]Stage(nil), p.stages...) }

// Run applies every stage in order. The first failing stage's error is
// returned as is and no table is returned with it.
func (p *Pipeline) Run(t *models.Table) (*models.Table, error) {
	log := logging.Component("pipeline")
	if t == nil {
		metrics.PipelineRunsTotal.WithLabelValues("failure").Inc()
		log.Error("CO2 transformation pipeline failed", "error", ErrNoData)
		return nil, ErrNoData
	}

	log.Info("starting CO2 transformation pipeline", "rows", t.Len(), "columns", t.Width())

	cur := t
	for _, st := range p.stages {
		start := time.Now()
		next, err := st.Apply(cur)
		metrics.StageDuration.WithLabelValues(st.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.StageFailuresTotal.WithLabelValues(st.Name).Inc()
			metrics.PipelineRunsTotal.WithLabelValues("failure").Inc()
			log.Error("CO2 transformation pipeline failed", "stage", st.Name, "error", err)
			return nil, err
		}
		cur = next
	}

	if flags, ok := cur.Column(ImputedColumn(p.opts.MeasurementColumn)); ok {
		metrics.RowsImputed.Add(float64(countTrue(flags.Bools())))
	}
	metrics.RowsProcessed.Add(float64(cur.Len()))
	metrics.PipelineRunsTotal.WithLabelValues("success").Inc()
	metrics.LastSuccess.SetToCurrentTime()

	log.Info("CO2 transformation pipeline completed", "rows", cur.Len(), "columns", cur.Names())
	return cur, nil
}

// Transform runs the pipeline with default options.
func Transform(t *models.Table) (*models.Table, error) {
	return NewPipeline(DefaultOptions()).Run(t)
}
