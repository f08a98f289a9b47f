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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

func runRefine(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	feedback := strings.Join(args[1:], " ")

	result, err := client.refine(cmd.Context(), sessionID, feedback)
	if err != nil {
		return err
	}

	fmt.Println(result.Message)
	switch {
	case result.Success:
		printModification(result.Modification)
	case result.ImpossibleRequest:
		fmt.Println("reason:", result.ImpossibleReason)
	}
	return nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	patch, err := client.undo(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println("rolled back to patch", patch.ID)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := client.clear(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Println("cleared patch state for session", args[0])
	return nil
}

// printModification renders the applied diff for the terminal.
func printModification(mod *datatypes.PatchModification) {
	if mod == nil {
		return
	}
	for _, change := range mod.ParameterChanges {
		fmt.Printf("  ~ %s %s: %s -> %s\n",
			change.ModuleName, change.Parameter, change.OldValue, change.NewValue)
	}
	for _, conn := range mod.ConnectionsAdded {
		fmt.Printf("  + %s %s -> %s %s [%s]\n",
			conn.From.ModuleName, conn.From.OutputName,
			conn.To.ModuleName, conn.To.InputName, conn.SignalType)
	}
	for _, id := range mod.ConnectionsRemoved {
		fmt.Printf("  - connection %s\n", id)
	}
}
