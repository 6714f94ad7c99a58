// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strings"

	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/logics"
	"github.com/gorse-io/moviematch/server"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend movies from three seed movies",
}

var recommendContentCommand = &cobra.Command{
	Use:   "content SEED SEED SEED",
	Short: "Recommend movies with similar overviews",
	Args:  cobra.ExactArgs(logics.NumSeeds),
	RunE: func(cmd *cobra.Command, args []string) error {
		recommender, err := newRecommender(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		n := topN(cmd)
		result, err := recommender.RecommendContent(cmd.Context(), args, n)
		return printResult(cmd, result, err)
	},
}

var recommendCollaborativeCommand = &cobra.Command{
	Use:   "collaborative [SEED SEED SEED]",
	Short: "Recommend movies liked by users with similar taste",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != logics.NumSeeds {
			return fmt.Errorf("accepts 0 or %d seed movies, received %d", logics.NumSeeds, len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = config.DefaultCollaborativeSeeds
		}
		recommender, err := newRecommender(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		n := topN(cmd)
		result, err := recommender.RecommendCollaborative(cmd.Context(), args, n)
		return printResult(cmd, result, err)
	},
}

func topN(cmd *cobra.Command) int {
	if cmd.Flags().Changed("top-n") {
		n, _ := cmd.Flags().GetInt("top-n")
		return n
	}
	return conf.Recommend.TopN
}

// printResult prints recommendations as a table. Invalid input and unknown movies are
// returned as errors, other failures print a generic message.
func printResult(cmd *cobra.Command, result *logics.Result, err error) error {
	if err != nil {
		if errors.Is(err, errors.NotValid) || errors.Is(err, errors.NotFound) {
			return errors.Trace(err)
		}
		cmd.PrintErrln(server.FailureMessage)
		return errors.Trace(err)
	}
	cmd.Println(server.Message(result.Status))
	if len(result.Items) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("#", "Title", "Genres", "Score")
	for i, item := range result.Items {
		if err = table.Append([]string{
			fmt.Sprint(i + 1),
			item.Title,
			strings.Join(item.Genres, "|"),
			fmt.Sprintf("%.4f", item.Score),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func init() {
	for _, command := range []*cobra.Command{recommendContentCommand, recommendCollaborativeCommand} {
		command.Flags().IntP("top-n", "n", 5, "number of recommended movies (default recommend.top_n)")
		recommendCommand.AddCommand(command)
	}
	rootCommand.AddCommand(recommendCommand)
}
