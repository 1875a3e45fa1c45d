// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// documents.go - Document listing handler for the raise CLI.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jeranaias/raise-tui/internal/util"
)

// HandleDocuments prints the documents uploaded to the server.
func HandleDocuments(args Args) error {
	app, err := BuildApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	docs, err := app.Sessions.ListDocuments(context.Background())
	if err != nil {
		return err
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(docs)
	}

	if len(docs) == 0 {
		fmt.Println("No documents uploaded.")
		return nil
	}
	for _, doc := range docs {
		title := doc.Title
		if title == "" {
			title = doc.FileName
		}
		fmt.Printf("  %s  %s\n", doc.ID, util.TruncateString(title, 70))
	}
	return nil
}
