package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/healthlog/internal/catalog"
	"github.com/roach88/healthlog/internal/model"
)

// FieldOptions holds flags for fields add and fields update.
type FieldOptions struct {
	*RootOptions
	ID      string
	Name    string
	Type    string
	Unit    string
	Scope   string
	Order   float64
	Display bool
}

// NewFieldsCommand creates the fields command group.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Manage tracked fields",
		Long: `Manage the fields records are logged against.

A field has a slug ID, a display name, a type (number, string or boolean)
that can't change once created, an optional unit and scope, and a sort order.`,
	}

	cmd.AddCommand(newFieldsListCommand(rootOpts))
	cmd.AddCommand(newFieldsAddCommand(rootOpts))
	cmd.AddCommand(newFieldsUpdateCommand(rootOpts))
	cmd.AddCommand(newFieldsDeleteCommand(rootOpts))
	cmd.AddCommand(newFieldsClearCommand(rootOpts))
	cmd.AddCommand(newFieldsSeedCommand(rootOpts))

	return cmd
}

func newFieldsListCommand(rootOpts *RootOptions) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fields in display order",
		Example: `  healthlog fields list
  healthlog fields list --scope habits --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				fields := a.cache.Fields.Mirror()
				if scope != "" {
					fields = slices.DeleteFunc(fields, func(f model.Field) bool {
						return f.Scope != scope
					})
				}
				return a.out.Success(formatFields(fields), fields)
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "only list fields with this scope")

	return cmd
}

func newFieldsAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a field",
		Long: `Add a field.

The ID defaults to a slug of the name. Without --order the field is placed
after the last one.`,
		Example: `  healthlog fields add Weight --type number --unit kg --display
  healthlog fields add "Took vitamins" --type boolean --scope habits`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return addField(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "field ID (default: slug of the name)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "value type: number, string or boolean (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "display unit")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "scope tag (default: general)")
	cmd.Flags().Float64Var(&opts.Order, "order", 0, "sort order (default: after the last field)")
	cmd.Flags().BoolVar(&opts.Display, "display", false, "show by default")

	return cmd
}

func addField(opts *FieldOptions, cmd *cobra.Command) error {
	typ, err := model.ParseFieldType(opts.Type)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --type", err)
	}

	id := opts.ID
	if id == "" {
		id = model.Slugify(opts.Name)
	}

	scope := opts.Scope
	if scope == "" {
		scope = model.DefaultScope
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		if _, exists := a.cache.Fields.Get(id); exists {
			return NewExitError(ExitCommandError, fmt.Sprintf("field %q already exists", id))
		}

		order := opts.Order
		if !cmd.Flags().Changed("order") {
			fields := a.cache.Fields.Mirror()
			var last *model.Field
			if len(fields) > 0 {
				last = &fields[len(fields)-1]
			}
			order = model.OrderBetween(last, nil)
		}

		f := model.Field{
			FieldID:        id,
			Name:           opts.Name,
			Unit:           opts.Unit,
			Type:           typ,
			Order:          order,
			DefaultDisplay: opts.Display,
			Scope:          scope,
		}
		if err := a.cache.Fields.Add(ctx, f); err != nil {
			return storageError("failed to add field", err)
		}

		return a.out.Success(fmt.Sprintf("Added field %s", f.FieldID), f)
	})
}

func newFieldsUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a field",
		Long: `Update a field. Only the given flags change.

The type of a field can't be changed once it exists.`,
		Example: `  healthlog fields update weight --unit lb
  healthlog fields update mood --order 1.5 --display`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ID = args[0]
			return updateField(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Type, "type", "", "value type (must match the existing type)")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "display unit")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "scope tag")
	cmd.Flags().Float64Var(&opts.Order, "order", 0, "sort order")
	cmd.Flags().BoolVar(&opts.Display, "display", false, "show by default")

	return cmd
}

func updateField(opts *FieldOptions, cmd *cobra.Command) error {
	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		f, ok := a.cache.Fields.Get(opts.ID)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("field %q not found", opts.ID))
		}

		flags := cmd.Flags()
		if flags.Changed("name") {
			f.Name = opts.Name
		}
		if flags.Changed("type") {
			typ, err := model.ParseFieldType(opts.Type)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --type", err)
			}
			f.Type = typ
		}
		if flags.Changed("unit") {
			f.Unit = opts.Unit
		}
		if flags.Changed("scope") {
			f.Scope = opts.Scope
		}
		if flags.Changed("order") {
			f.Order = opts.Order
		}
		if flags.Changed("display") {
			f.DefaultDisplay = opts.Display
		}

		if err := a.cache.Fields.Update(ctx, f); err != nil {
			return storageError("failed to update field", err)
		}

		return a.out.Success(fmt.Sprintf("Updated field %s", f.FieldID), f)
	})
}

func newFieldsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a field",
		Long:          "Delete a field. Records logged against it are kept.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.cache.Fields.Delete(ctx, id); err != nil {
					return storageError("failed to delete field", err)
				}
				return a.out.Success(fmt.Sprintf("Deleted field %s", id), map[string]string{"fieldId": id})
			})
		},
	}
}

func newFieldsClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Delete every field",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				n := a.cache.Fields.Len()
				if err := a.cache.Fields.Clear(ctx); err != nil {
					return storageError("failed to clear fields", err)
				}
				return a.out.Success(fmt.Sprintf("Deleted %d fields", n), map[string]int{"deleted": n})
			})
		},
	}
}

func newFieldsSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog.cue]",
		Short: "Add fields from a catalog",
		Long: `Add every field of a CUE catalog in one transaction.

Without an argument the built-in catalog is used (weight, blood pressure,
pulse, steps, sleep, mood, medication). Existing fields with the same ID are
overwritten; their type must not change.`,
		Example: `  healthlog fields seed
  healthlog fields seed ./my-fields.cue`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := loadCatalog(args)
			if err != nil {
				return err
			}

			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.cache.Fields.BatchUpsert(ctx, fields); err != nil {
					return storageError("failed to seed fields", err)
				}
				return a.out.Success(fmt.Sprintf("Seeded %d fields", len(fields)), fields)
			})
		},
	}
}

func loadCatalog(args []string) ([]model.Field, error) {
	if len(args) == 0 {
		fields, err := catalog.Default()
		if err != nil {
			return nil, WrapExitError(ExitFailure, "failed to load built-in catalog", err)
		}
		return fields, nil
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read catalog", err)
	}
	fields, err := catalog.Load(args[0], src)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid catalog", err)
	}
	return fields, nil
}

// formatFields renders fields as an aligned table.
func formatFields(fields []model.Field) string {
	if len(fields) == 0 {
		return "No fields"
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tUNIT\tSCOPE\tDISPLAY\tORDER")
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.FieldID, f.Name, f.Type, orDash(f.Unit), orDash(f.Scope),
			yesNo(f.DefaultDisplay), strconv.FormatFloat(f.Order, 'f', -1, 64))
	}
	w.Flush()

	return strings.TrimSuffix(sb.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
