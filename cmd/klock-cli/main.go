package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"klockd/internal/event"
	"klockd/internal/ipc"

	sqlitehistory "klockd/internal/history/sqlite"
)

var socketPath string
var dbPath string

var rootCmd = &cobra.Command{
	Use:   "klock-cli",
	Short: "CLI tool to interact with the klockd daemon",
	Long:  `A command-line interface to manage reminder events and friends in the running klockd daemon via its Unix socket.`,
}

// sendCommand connects to the daemon, sends one command and returns the
// decoded response. Exits on any transport error.
func sendCommand(cmd ipc.Command) ipc.Response {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		log.Fatalf("Error connecting to daemon socket (%s): %v\nIs the klockd daemon running?", socketPath, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(cmd); err != nil {
		log.Fatalf("Error sending command: %v", err)
	}

	var resp ipc.Response
	if err := decoder.Decode(&resp); err != nil {
		log.Fatalf("Error receiving response: %v", err)
	}

	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", resp.Message)
		os.Exit(1)
	}
	return resp
}

func printMessage(resp ipc.Response) {
	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
}

// decodeData re-marshals the response's loosely-typed Data field into
// the expected struct.
func decodeData(data interface{}, out interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Fatalf("Error decoding response data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Fatalf("Error decoding response data: %v", err)
	}
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, h)
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		for i, f := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, f)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

// --- Command Definitions ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the klockd daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		printMessage(sendCommand(ipc.Command{Name: ipc.CmdPing}))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status (record counts, next upcoming event)",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdGetStatus})
		var status ipc.StatusData
		decodeData(resp.Data, &status)
		fmt.Printf("Events:  %d\n", status.Events)
		fmt.Printf("Friends: %d\n", status.Friends)
		if status.NextEvent != "" {
			fmt.Printf("Next:    %s in %s\n", status.NextEvent, status.NextRemaining)
		}
	},
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage reminder events",
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a reminder event",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		date, _ := cmd.Flags().GetString("date")
		timeDue, _ := cmd.Flags().GetString("time")
		category, _ := cmd.Flags().GetString("category")
		recurring, _ := cmd.Flags().GetString("recurring")
		notes, _ := cmd.Flags().GetString("notes")

		printMessage(sendCommand(ipc.Command{
			Name: ipc.CmdAddEvent,
			Args: ipc.AddEventArgs{
				Name:      name,
				DateDue:   date,
				TimeDue:   timeDue,
				Category:  category,
				Recurring: recurring,
				Notes:     notes,
			},
		}))
	},
}

var eventDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a reminder event",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		printMessage(sendCommand(ipc.Command{
			Name: ipc.CmdDeleteEvent,
			Args: ipc.DeleteEventArgs{Name: args[0]},
		}))
	},
}

var eventGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Show a single reminder event",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{
			Name: ipc.CmdGetEvent,
			Args: ipc.GetEventArgs{Name: args[0]},
		})
		var fields []string
		decodeData(resp.Data, &fields)
		printTable(event.Headers(), [][]string{fields})
	},
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reminder events",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdListEvents})
		var data ipc.EventListData
		decodeData(resp.Data, &data)
		printTable(data.Headers, data.Events)
	},
}

var eventCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the accepted event categories",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdGetCategories})
		var cats []string
		decodeData(resp.Data, &cats)
		for _, c := range cats {
			if c == "" {
				c = "(none)"
			}
			fmt.Println(c)
		}
	},
}

var eventSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Force a save of the event store",
	Run: func(cmd *cobra.Command, args []string) {
		printMessage(sendCommand(ipc.Command{Name: ipc.CmdSaveEvents}))
	},
}

var friendCmd = &cobra.Command{
	Use:   "friend",
	Short: "Manage the friends address book",
}

var friendAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a friend",
	Run: func(cmd *cobra.Command, args []string) {
		var fa ipc.AddFriendArgs
		fa.Title, _ = cmd.Flags().GetString("title")
		fa.LastName, _ = cmd.Flags().GetString("last")
		fa.FirstName, _ = cmd.Flags().GetString("first")
		fa.Mobile, _ = cmd.Flags().GetString("mobile")
		fa.Telephone, _ = cmd.Flags().GetString("telephone")
		fa.Email, _ = cmd.Flags().GetString("email")
		fa.Birthday, _ = cmd.Flags().GetString("birthday")
		fa.HouseNo, _ = cmd.Flags().GetString("house")
		fa.Address1, _ = cmd.Flags().GetString("address1")
		fa.Address2, _ = cmd.Flags().GetString("address2")
		fa.City, _ = cmd.Flags().GetString("city")
		fa.County, _ = cmd.Flags().GetString("county")
		fa.PostCode, _ = cmd.Flags().GetString("postcode")
		fa.Country, _ = cmd.Flags().GetString("country")
		fa.Notes, _ = cmd.Flags().GetString("notes")

		printMessage(sendCommand(ipc.Command{Name: ipc.CmdAddFriend, Args: fa}))
	},
}

var friendDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete a friend by key (\"Last Name : First Name\")",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		printMessage(sendCommand(ipc.Command{
			Name: ipc.CmdDeleteFriend,
			Args: ipc.DeleteFriendArgs{Key: args[0]},
		}))
	},
}

var friendListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all friends",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdListFriends})
		var data ipc.FriendListData
		decodeData(resp.Data, &data)
		printTable(data.Headers, data.Friends)
	},
}

// historyCmd opens the notification history database directly, so it
// works whether or not the daemon is up.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show reminders dispatched in the past days",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			log.Fatalf("Error: history database not found at %s. Ensure klockd has run or specify path with --db.", dbPath)
		} else if err != nil {
			log.Fatalf("Error accessing history database %s: %v", dbPath, err)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")
		stageFilter, _ := cmd.Flags().GetString("stage")

		end := time.Now()
		start := end.AddDate(0, 0, -days)

		store := sqlitehistory.NewSQLiteStore(dbPath)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			log.Fatalf("Failed to open history database: %v", err)
		}
		defer store.Close()

		var stages []event.Stage
		if stageFilter != "" {
			stages = append(stages, event.Stage(stageFilter))
		}

		notifications, err := store.ListNotifications(ctx, start, end, stages...)
		if err != nil {
			log.Fatalf("Failed to query notifications: %v", err)
		}
		if len(notifications) == 0 {
			fmt.Println("No reminders dispatched in the specified period.")
			return
		}

		rows := make([][]string, 0, len(notifications))
		for _, n := range notifications {
			rows = append(rows, []string{
				n.SentAt.Local().Format("2006-01-02 15:04:05"),
				n.EventName,
				string(n.Stage),
				n.Remaining,
			})
		}
		printTable([]string{"Sent At", "Event", "Stage", "Remaining"}, rows)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/tmp/klockd.sock", "Path to the klockd command socket")

	eventAddCmd.Flags().StringP("name", "n", "", "Event name (required)")
	eventAddCmd.Flags().StringP("date", "d", "", "Due date, e.g. '2 April 1958' (required)")
	eventAddCmd.Flags().StringP("time", "t", "12:00", "Due time, 24-hour 'HH:MM'")
	eventAddCmd.Flags().StringP("category", "c", "", "Event category (see 'event categories')")
	eventAddCmd.Flags().StringP("recurring", "r", "", "Recurring marker (free text)")
	eventAddCmd.Flags().String("notes", "", "Optional notes")
	eventAddCmd.MarkFlagRequired("name")
	eventAddCmd.MarkFlagRequired("date")

	eventCmd.AddCommand(eventAddCmd)
	eventCmd.AddCommand(eventDeleteCmd)
	eventCmd.AddCommand(eventGetCmd)
	eventCmd.AddCommand(eventListCmd)
	eventCmd.AddCommand(eventCategoriesCmd)
	eventCmd.AddCommand(eventSaveCmd)
	rootCmd.AddCommand(eventCmd)

	friendAddCmd.Flags().String("title", "", "Title (Mr, Mrs, ...)")
	friendAddCmd.Flags().String("last", "", "Last name")
	friendAddCmd.Flags().String("first", "", "First name")
	friendAddCmd.Flags().String("mobile", "", "Mobile number")
	friendAddCmd.Flags().String("telephone", "", "Telephone number")
	friendAddCmd.Flags().String("email", "", "E-mail address")
	friendAddCmd.Flags().String("birthday", "", "Birthday")
	friendAddCmd.Flags().String("house", "", "House number")
	friendAddCmd.Flags().String("address1", "", "Address line 1")
	friendAddCmd.Flags().String("address2", "", "Address line 2")
	friendAddCmd.Flags().String("city", "", "City")
	friendAddCmd.Flags().String("county", "", "County")
	friendAddCmd.Flags().String("postcode", "", "Post code")
	friendAddCmd.Flags().String("country", "", "Country")
	friendAddCmd.Flags().String("notes", "", "Notes")

	friendCmd.AddCommand(friendAddCmd)
	friendCmd.AddCommand(friendDeleteCmd)
	friendCmd.AddCommand(friendListCmd)
	rootCmd.AddCommand(friendCmd)

	historyCmd.Flags().IntP("days", "d", 7, "Number of past days to include")
	historyCmd.Flags().StringP("stage", "s", "", "Filter by stage ('Stage 1', 'Stage 2', 'Stage 3', 'Now')")
	historyCmd.PersistentFlags().StringVar(&dbPath, "db", "klock.db", "Path to the klockd history database file")
	rootCmd.AddCommand(historyCmd)

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
