package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/events"
	"github.com/fentz26/prodtrack/internal/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show task event history",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

var (
	eventsProject string
	eventsTask    string
	eventsSince   time.Duration
	eventsLimit   int
	eventsLog     bool
)

func init() {
	eventsCmd.Flags().StringVar(&eventsProject, "project", "", "Filter by project ID")
	eventsCmd.Flags().StringVar(&eventsTask, "task", "", "Filter by task ID")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 0, "Only events newer than this, e.g. 24h")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of events")
	eventsCmd.Flags().BoolVar(&eventsLog, "log", false, "Read the local JSON-lines event log instead of the daemon")
}

func runEvents(cmd *cobra.Command, args []string) error {
	var evs []models.Event
	if eventsLog {
		all, err := events.ReadJSONL(loadedConfig.Events.LogPath)
		if err != nil {
			return err
		}
		evs = filterLogged(all)
	} else {
		after := ""
		if eventsSince > 0 {
			after = time.Now().Add(-eventsSince).UTC().Format(time.RFC3339)
		}
		q := query("project_id", eventsProject, "task_id", eventsTask, "after", after, "limit", strconv.Itoa(eventsLimit))
		if err := apiGet("/events"+q, &evs); err != nil {
			return err
		}
	}

	if len(evs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events found.")
		return nil
	}
	rows := make([][]string, 0, len(evs))
	for _, ev := range evs {
		rows = append(rows, []string{
			ev.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			ev.Name,
			ev.TaskID,
			string(ev.Status),
			ev.PersonID,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Time", "Event", "Task", "Status", "Person"}, rows, nil))
	return nil
}

// filterLogged applies the command filters to log entries, newest first.
func filterLogged(all []models.Event) []models.Event {
	var cutoff time.Time
	if eventsSince > 0 {
		cutoff = time.Now().Add(-eventsSince)
	}
	var out []models.Event
	for i := len(all) - 1; i >= 0 && (eventsLimit <= 0 || len(out) < eventsLimit); i-- {
		ev := all[i]
		if eventsProject != "" && ev.ProjectID != eventsProject {
			continue
		}
		if eventsTask != "" && ev.TaskID != eventsTask {
			continue
		}
		if !cutoff.IsZero() && ev.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
