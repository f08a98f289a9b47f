// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchmind/pkg/logging"
)

// --- Global Command Variables ---
var (
	serverURL string
	logLevel  string

	logger *logging.Logger
	client *apiClient

	rootCmd = &cobra.Command{
		Use:   "patchctl",
		Short: "A cli for the Patchmind patch refinement service",
		Long: `patchctl drives conversational refinement of modular synthesizer
patches: create a session, attach your rack and a starting patch, then
iterate with plain-language feedback like "darker" or "add reverb".`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig()
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = cfg.ServerURL
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			logger, err = logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				LogDir:  cfg.LogDir,
				Service: "patchctl",
			})
			if err != nil {
				return err
			}
			client = newAPIClient(serverURL, logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Close()
			}
		},
	}

	// --- Session Management ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage refinement sessions",
	}
	sessionCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a new refinement session",
		RunE:  runSessionCreate,
	}
	sessionListCmd = &cobra.Command{
		Use:   "list",
		Short: "List live session ids",
		RunE:  runSessionList,
	}
	sessionShowCmd = &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session, including its current patch",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionShow,
	}
	sessionDeleteCmd = &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a session and all its patch state",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionDelete,
	}

	// --- Rack / Patch attachment ---
	rackCmd = &cobra.Command{
		Use:   "rack [session-id] [rack.json]",
		Short: "Attach a rack inventory snapshot to a session",
		Args:  cobra.ExactArgs(2),
		RunE:  runAttachRack,
	}
	patchCmd = &cobra.Command{
		Use:   "patch [session-id] [patch.json]",
		Short: "Attach a starting patch to a session",
		Args:  cobra.ExactArgs(2),
		RunE:  runAttachPatch,
	}

	// --- Refinement ---
	refineCmd = &cobra.Command{
		Use:   "refine [session-id] [feedback...]",
		Short: "Refine the current patch with plain-language feedback",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRefine,
	}
	undoCmd = &cobra.Command{
		Use:   "undo [session-id]",
		Short: "Roll back the last refinement",
		Args:  cobra.ExactArgs(1),
		RunE:  runUndo,
	}
	clearCmd = &cobra.Command{
		Use:   "clear [session-id]",
		Short: "Drop the session's patch and history for a fresh start",
		Args:  cobra.ExactArgs(1),
		RunE:  runClear,
	}

	// --- Service ---
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate service statistics",
		RunE:  runStats,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "refinery service URL (overrides config file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	sessionCreateCmd.Flags().String("owner", "", "session owner identifier")
	sessionCreateCmd.Flags().Bool("demo", false, "create a demo-mode session (no oracle calls)")

	sessionCmd.AddCommand(sessionCreateCmd, sessionListCmd, sessionShowCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd, rackCmd, patchCmd, refineCmd, undoCmd, clearCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
