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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

func runSessionCreate(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	demo, _ := cmd.Flags().GetBool("demo")

	session, err := client.createSession(cmd.Context(), owner, demo)
	if err != nil {
		return err
	}
	fmt.Println(session.ID)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	ids, err := client.listSessions(cmd.Context())
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Fprintf(os.Stderr, "%d session(s)\n", len(ids))
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	session, err := client.getSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	if err := client.deleteSession(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Println("deleted", args[0])
	return nil
}

func runAttachRack(cmd *cobra.Command, args []string) error {
	var rack datatypes.Rack
	if err := readJSONFile(args[1], &rack); err != nil {
		return err
	}
	if err := client.attachRack(cmd.Context(), args[0], &rack); err != nil {
		return err
	}
	fmt.Printf("attached rack with %d module(s)\n", len(rack.Modules))
	return nil
}

func runAttachPatch(cmd *cobra.Command, args []string) error {
	var patch datatypes.Patch
	if err := readJSONFile(args[1], &patch); err != nil {
		return err
	}
	if err := client.attachPatch(cmd.Context(), args[0], &patch); err != nil {
		return err
	}
	fmt.Println("attached patch", patch.ID)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	active, err := client.stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("active sessions: %d\n", active)
	return nil
}

// readJSONFile loads a JSON document from disk into out.
func readJSONFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
