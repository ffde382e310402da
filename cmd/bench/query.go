package main

import (
	"backend-trackbench/internal/docstore"
	"backend-trackbench/internal/tracking"

	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	q := tracking.ResultsQuery{Variant: tracking.VariantSQL, Mode: "none", OrderBy: "start", Limit: 20}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one aggregation against the loaded data and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, p, err := q.Parse()
			if err != nil {
				return err
			}

			st, err := a.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer st.close(cmd.Context())

			variants := tracking.Variants{}
			if st.pg != nil {
				variants = tracking.NewService(st.pg, a.engine()).Variants()
			}
			if st.mongo != nil {
				variants = variants.Merge(docstore.NewService(st.mongo, a.engine()).Variants())
			}
			agg, err := variants.Lookup(q.Variant)
			if err != nil {
				return err
			}

			res, err := agg.Aggregate(cmd.Context(), f, p)
			if err != nil {
				return err
			}
			printResult(a.out, res)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&q.Variant, "variant", q.Variant, "sql, memory, mongo_agg or mongo_memory")
	flags.StringVar(&q.Mode, "mode", q.Mode, "none, all or behind")
	flags.StringVar(&q.OrderBy, "order-by", q.OrderBy, "start or best")
	flags.IntVar(&q.Limit, "limit", q.Limit, "row limit")
	flags.StringVar(&q.Gender, "gender", "", "gender filter")
	flags.StringVar(&q.Start, "start", "", "first day, YYYY-MM-DD")
	flags.StringVar(&q.End, "end", "", "last day, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
