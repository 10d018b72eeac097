package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/healthlog/internal/model"
)

// RecordListOptions holds flags for records list.
type RecordListOptions struct {
	*RootOptions
	Field string
	From  string
	To    string
}

// RecordAddOptions holds flags for records add.
type RecordAddOptions struct {
	*RootOptions
	ID string
	At string
}

// NewRecordsCommand creates the records command group.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Log and browse records",
		Long: `Log and browse timestamped records.

Each record holds one value for one field. The value must match the field's
type.`,
	}

	cmd.AddCommand(newRecordsListCommand(rootOpts))
	cmd.AddCommand(newRecordsAddCommand(rootOpts))
	cmd.AddCommand(newRecordsDeleteCommand(rootOpts))
	cmd.AddCommand(newRecordsClearCommand(rootOpts))

	return cmd
}

func newRecordsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, oldest first",
		Example: `  healthlog records list
  healthlog records list --field weight
  healthlog records list --from 2024-01-01 --to 2024-01-31`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				records, err := listRecords(a, opts)
				if err != nil {
					return err
				}
				return a.out.Success(formatRecords(records), records)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Field, "field", "", "only list records of this field")
	cmd.Flags().StringVar(&opts.From, "from", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last date to include (YYYY-MM-DD)")

	return cmd
}

// listRecords filters the mirror.
func listRecords(a *app, opts *RecordListOptions) ([]model.Record, error) {
	for _, d := range []string{opts.From, opts.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid date %q: want YYYY-MM-DD", d))
		}
	}

	return slices.DeleteFunc(a.cache.Records.Mirror(), func(r model.Record) bool {
		return (opts.Field != "" && r.FieldID != opts.Field) ||
			(opts.From != "" && r.Date < opts.From) ||
			(opts.To != "" && r.Date > opts.To)
	}), nil
}

func newRecordsAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <field> <value>",
		Short: "Log a value for a field",
		Long: `Log a value for a field.

The value is parsed according to the field's type. Booleans accept
true/false, yes/no and y/n. Without --at the record is timestamped now.`,
		Example: `  healthlog records add weight 70.4
  healthlog records add medication yes --at 2024-01-01T08:00`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addRecord(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "record ID (default: generated)")
	cmd.Flags().StringVar(&opts.At, "at", "", "local time of the observation (YYYY-MM-DDTHH:MM)")

	return cmd
}

func addRecord(opts *RecordAddOptions, fieldID, raw string, cmd *cobra.Command) error {
	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		f, ok := a.cache.Fields.Get(fieldID)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("field %q not found", fieldID))
		}

		v, err := model.ParseValue(f.Type, raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid value", err)
		}

		at := a.now()
		if opts.At != "" {
			if at, err = time.ParseInLocation("2006-01-02T15:04", opts.At, time.Local); err != nil {
				return WrapExitError(ExitCommandError, "invalid --at", err)
			}
		}

		id := opts.ID
		if id == "" {
			id = a.ids.Generate()
		}

		r := model.NewRecord(id, f.FieldID, at, v)
		if err := a.cache.AddRecord(ctx, r); err != nil {
			return storageError("failed to add record", err)
		}

		return a.out.Success(fmt.Sprintf("Added record %s", r.ID), r)
	})
}

func newRecordsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.cache.Records.Delete(ctx, id); err != nil {
					return storageError("failed to delete record", err)
				}
				return a.out.Success(fmt.Sprintf("Deleted record %s", id), map[string]string{"id": id})
			})
		},
	}
}

func newRecordsClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Delete every record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				n := a.cache.Records.Len()
				if err := a.cache.Records.Clear(ctx); err != nil {
					return storageError("failed to clear records", err)
				}
				return a.out.Success(fmt.Sprintf("Deleted %d records", n), map[string]int{"deleted": n})
			})
		},
	}
}

// formatRecords renders records as an aligned table.
func formatRecords(records []model.Record) string {
	if len(records) == 0 {
		return "No records"
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTIME\tFIELD\tVALUE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, orDash(r.Time), r.FieldID, model.FormatValue(r.Value))
	}
	w.Flush()

	return strings.TrimSuffix(sb.String(), "\n")
}
