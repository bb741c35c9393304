package validate

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/blobsource"
	"github.com/tablevet/tablevet/cmd/internal/cmdutil"
	"github.com/tablevet/tablevet/dbsource"
	"github.com/tablevet/tablevet/dbtable"
	"github.com/tablevet/tablevet/frame"
	// The frame engine registers itself on import.
	_ "github.com/tablevet/tablevet/framebackend"
	"github.com/tablevet/tablevet/retry"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
	"golang.org/x/time/rate"
)

func Command() *cobra.Command {
	var (
		schemaPath    string
		csvPath       string
		sourceConn    string
		tableName     string
		delimiter     string
		noHeader      bool
		lazy          bool
		coerceTypes   bool
		headRows      int
		tailRows      int
		sampleRows    int
		sampleSeed    uint64
		rowBatchSize  int
		limitRows     int
		rowsPerSecond int
		outputPath    string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate CSV or database data against a schema.",
		Long:  `Validate reads tabular data from a CSV file or a database table and checks it against a declared schema, reporting every failure found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			cmdutil.RunMetricsServer(logger)

			if (csvPath == "") == (sourceConn == "") {
				return errors.Newf("exactly one of --csv and --source must be set")
			}

			ctx := context.Background()
			sch, err := cmdutil.LoadSchema(ctx, logger, schemaPath)
			if err != nil {
				return err
			}

			var data *frame.Frame
			if csvPath != "" {
				data, err = readCSV(ctx, logger, sch, csvPath, delimiter, noHeader)
			} else {
				data, err = readTable(
					ctx, logger, sch, sourceConn, tableName,
					rowBatchSize, limitRows, rowsPerSecond,
				)
			}
			if err != nil {
				return err
			}
			logger.Debug().
				Int("rows", data.NumRows()).
				Int("columns", data.NumColumns()).
				Msgf("loaded data")

			if coerceTypes {
				coerced, err := sch.CoerceDType(ctx, data)
				if err != nil {
					return reportFailures(logger, err)
				}
				data = coerced.(*frame.Frame)
			}

			var opts []backend.Option
			if lazy {
				opts = append(opts, backend.WithLazy())
			}
			if headRows > 0 {
				opts = append(opts, backend.WithHead(headRows))
			}
			if tailRows > 0 {
				opts = append(opts, backend.WithTail(tailRows))
			}
			if sampleRows > 0 {
				opts = append(opts, backend.WithSample(sampleRows, sampleSeed))
			}

			validated, err := sch.Validate(ctx, data, opts...)
			if err != nil {
				return reportFailures(logger, err)
			}
			out := validated.(*frame.Frame)
			logger.Info().
				Int("rows", out.NumRows()).
				Int("columns", out.NumColumns()).
				Msgf("validation passed")

			if outputPath != "" {
				sink, err := blobsource.SinkFor(ctx, logger, outputPath)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := out.WriteCSV(&buf); err != nil {
					return errors.Wrapf(err, "error writing %s", outputPath)
				}
				if err := sink.Put(ctx, outputPath, &buf); err != nil {
					return err
				}
				logger.Info().Msgf("wrote validated data to %s", outputPath)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(
		&schemaPath,
		"schema",
		"",
		"path or URL of the schema document (.yaml or .json)",
	)
	if err := cmd.MarkPersistentFlagRequired("schema"); err != nil {
		panic(err)
	}
	cmd.PersistentFlags().StringVar(
		&csvPath,
		"csv",
		"",
		"path or URL of a CSV file to validate",
	)
	cmd.PersistentFlags().StringVar(
		&sourceConn,
		"source",
		"",
		"URL of the source database to validate",
	)
	cmd.PersistentFlags().StringVar(
		&tableName,
		"table",
		"",
		"table to validate when --source is set, optionally schema-qualified",
	)
	cmd.PersistentFlags().StringVar(
		&delimiter,
		"delimiter",
		"",
		"CSV field delimiter (defaults to a comma)",
	)
	cmd.PersistentFlags().BoolVar(
		&noHeader,
		"no-header",
		false,
		"whether the CSV file has no header row, in which case column names come from the schema",
	)
	cmd.PersistentFlags().BoolVar(
		&lazy,
		"lazy",
		false,
		"whether to collect every failure instead of stopping at the first",
	)
	cmd.PersistentFlags().BoolVar(
		&coerceTypes,
		"coerce",
		false,
		"whether to coerce every column to its declared data type before validating",
	)
	cmd.PersistentFlags().IntVar(
		&headRows,
		"head",
		0,
		"if set, validate only the first N rows",
	)
	cmd.PersistentFlags().IntVar(
		&tailRows,
		"tail",
		0,
		"if set, validate only the last N rows",
	)
	cmd.PersistentFlags().IntVar(
		&sampleRows,
		"sample",
		0,
		"if set, validate a random sample of N rows",
	)
	cmd.PersistentFlags().Uint64Var(
		&sampleSeed,
		"sample-seed",
		0,
		"seed for --sample row selection",
	)
	cmd.PersistentFlags().IntVar(
		&rowBatchSize,
		"row-batch-size",
		10000,
		"number of rows to get from the database at a time",
	)
	cmd.PersistentFlags().IntVar(
		&limitRows,
		"limit",
		0,
		"if set, maximum number of rows to read from the database",
	)
	cmd.PersistentFlags().IntVar(
		&rowsPerSecond,
		"rows-per-second",
		0,
		"if set, maximum number of rows to read per second during scanning",
	)
	cmd.PersistentFlags().StringVar(
		&outputPath,
		"output",
		"",
		"if set, write the validated (possibly coerced and filtered) data as CSV to this path or URL",
	)
	cmdutil.RegisterLoggerFlags(cmd)
	cmdutil.RegisterMetricsFlags(cmd)
	return cmd
}

func readCSV(
	ctx context.Context,
	logger zerolog.Logger,
	sch *schema.Table,
	target string,
	delimiter string,
	noHeader bool,
) (*frame.Frame, error) {
	src, err := blobsource.For(ctx, logger, target)
	if err != nil {
		return nil, err
	}
	r, err := src.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var csvOpts frame.CSVOptions
	if delimiter != "" {
		runes := []rune(delimiter)
		if len(runes) != 1 {
			return nil, errors.Newf("delimiter must be a single character, got %q", delimiter)
		}
		csvOpts.Comma = runes[0]
	}
	if noHeader {
		csvOpts.NoHeader = true
		csvOpts.Labels = sch.ColumnNames()
	}
	f, err := frame.ReadCSV(r, csvOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", target)
	}
	return f, nil
}

func readTable(
	ctx context.Context,
	logger zerolog.Logger,
	sch *schema.Table,
	sourceConn string,
	tableName string,
	rowBatchSize int,
	limitRows int,
	rowsPerSecond int,
) (*frame.Frame, error) {
	if tableName == "" {
		return nil, errors.Newf("--table must be set when validating a database")
	}
	name, err := dbtable.ParseName(tableName, "public")
	if err != nil {
		return nil, err
	}
	conn, err := cmdutil.ConnectSource(ctx, logger, sourceConn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			logger.Err(err).Msgf("error closing source connection")
		}
	}()

	readOpts := dbsource.ReadOptions{
		RowBatchSize: rowBatchSize,
		Limit:        limitRows,
		Retry: retry.Settings{
			InitialBackoff: 250 * time.Millisecond,
			Multiplier:     2,
			MaxBackoff:     time.Second,
			MaxRetries:     3,
		},
	}
	if rowsPerSecond > 0 {
		batchInterval := float64(rowBatchSize) / float64(rowsPerSecond)
		readOpts.RateLimiter = rate.NewLimiter(
			rate.Every(time.Duration(float64(time.Second)*batchInterval)), 1,
		)
	}
	return dbsource.Read(ctx, conn, name, sch, logger, readOpts)
}

// reportFailures logs each validation failure and collapses the aggregate
// into a short error for the exit status. Non-validation errors pass through.
func reportFailures(logger zerolog.Logger, err error) error {
	var verrs *schemaerr.Errors
	if errors.As(err, &verrs) {
		for _, fe := range verrs.Errors() {
			logger.Error().
				Str("context", string(fe.Context)).
				Str("column", fe.Column).
				Str("check", fe.Result.Check).
				Msgf("%s", fe.Error())
		}
		return errors.Newf("found %d validation failure(s)", len(verrs.Errors()))
	}
	var verr *schemaerr.Error
	if errors.As(err, &verr) {
		logger.Error().
			Str("context", string(verr.Context)).
			Str("column", verr.Column).
			Str("check", verr.Result.Check).
			Msgf("%s", verr.Error())
		return errors.Newf("found 1 validation failure")
	}
	return err
}
