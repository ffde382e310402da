package main

import (
	"math/rand"
	"time"

	"backend-trackbench/internal/dataset"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		sizes dataset.Sizes
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the data of the selected backends with one generated dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			d, err := dataset.Generate(rand.New(rand.NewSource(seed)), sizes, time.Now().UTC().Truncate(time.Millisecond))
			if err != nil {
				return err
			}

			st, err := a.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer st.close(cmd.Context())

			for _, b := range st.backends(a.engine()) {
				start := time.Now()
				if err := b.Loader.Reload(cmd.Context(), d); err != nil {
					return err
				}
				level.Info(a.logger).Log("msg", "dataset loaded", "backend", b.Name, "seed", seed, "took", time.Since(start))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&sizes.Users, "users", 100, "users to generate")
	flags.IntVar(&sizes.Tracks, "tracks", 10, "tracks to generate")
	flags.IntVar(&sizes.Events, "events", 3, "events to generate")
	flags.IntVar(&sizes.Trackings, "trackings", 1000, "laps to generate")
	flags.Int64Var(&seed, "seed", 0, "random seed, 0 picks one")
	return cmd
}
