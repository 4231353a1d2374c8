package cmd

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iamnilay3/Shimmer/internal/fsutil"
	"github.com/iamnilay3/Shimmer/internal/parallel"
)

var hashCmd = &cobra.Command{
	Use:   "hash <root>",
	Short: "Hash every file below a directory in parallel",
	Long: `Hash every file below a directory with at most --parallel files in flight.

The first failing file stops the batch: no further files are started and the
command reports which item failed. Output is sorted by path and uses the same
layout as sha256sum, so it can be checked with "sha256sum -c".`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

var (
	hashParallel int
	hashAlgo     string
)

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().IntVarP(&hashParallel, "parallel", "p", 0, "maximum files hashed at once (default from parallel.degree)")
	hashCmd.Flags().StringVarP(&hashAlgo, "algo", "a", fsutil.AlgoSHA256,
		fmt.Sprintf("hash algorithm (%s)", strings.Join(fsutil.ValidAlgorithms(), ", ")))
}

type fileDigest struct {
	path string
	sum  string
}

func runHash(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	root := args[0]
	degree := rt.cfg.Parallel.Degree
	if cmd.Flags().Changed("parallel") {
		degree = hashParallel
	}

	// Feed the walker straight into the batch so hashing starts before the
	// tree has been fully listed.
	var walkErr error
	files := func(yield func(string) bool) {
		for path, err := range rt.fs.ListAllFilesRecursively(root) {
			if err != nil {
				walkErr = err
				return
			}
			if !yield(path) {
				return
			}
		}
	}

	digests, err := parallel.MapReduce(cmd.Context(), files, func(path string) parallel.Task[fileDigest] {
		return func() (fileDigest, error) {
			sum, err := rt.fs.HashFile(path, hashAlgo)
			if err != nil {
				return fileDigest{}, err
			}
			return fileDigest{path: path, sum: sum}, nil
		}
	}, degree, parallel.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	if walkErr != nil {
		return walkErr
	}

	slices.SortFunc(digests, func(a, b fileDigest) int {
		return strings.Compare(a.path, b.path)
	})

	out := cmd.OutOrStdout()
	for _, d := range digests {
		rel, err := filepath.Rel(root, d.path)
		if err != nil {
			rel = d.path
		}
		fmt.Fprintf(out, "%s  %s\n", d.sum, filepath.ToSlash(rel))
	}
	return nil
}
