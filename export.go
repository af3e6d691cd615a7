package main

import (
	"fmt"
	"os"

	"github.com/soocke/load-curtain-go/domain/session"
)

// writeExports writes the session event log next to the binary as CSV and
// JSON, named after the session start time.
func writeExports(sess *session.Session) error {
	stem := fmt.Sprintf("load-removal-session_%s", sess.StartedAt.Format("2006-01-02_15-04-05"))

	csvFile, err := os.Create(stem + ".csv")
	if err != nil {
		return err
	}
	defer csvFile.Close()
	if err := sess.WriteCSV(csvFile); err != nil {
		return err
	}

	jsonFile, err := os.Create(stem + ".json")
	if err != nil {
		return err
	}
	defer jsonFile.Close()
	return sess.WriteJSON(jsonFile)
}
