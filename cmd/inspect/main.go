// Command inspect reads and seeds the hub database: profiles, circles, message
// history, alerts and calls. Reading works next to a running hub, seeding does not.
package main

import (
	"circle-hub/auth"
	"circle-hub/domain"
	"circle-hub/internal"
	"circle-hub/repositories"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	JWTSecret      string `envconfig:"JWT_SECRET"`
	Colours        bool   `envconfig:"INSPECT_COLOURS" default:"true"`
}

const usage = `usage: inspect <command> [flags]

commands:
  profiles                         list every profile
  messages -room <room> [-cursor]  list the messages of a room, newest first
  alerts                           list the unresolved emergency alerts
  calls -user <user> [-limit]      list the call history of a user
  locations -user <user> [-limit]  list the location history of a user
  seed -user <user> [-name] [-circles a,b] [-devices t1,t2]
                                   create or replace a profile, and its circles
  token -user <user> [-ttl]        mint a handshake token
  serve [-addr]                    browse the raw keys in a web page`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if !config.Colours {
		color.Disable()
	}

	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "profiles":
		err = withDB(config, true, listProfiles)
	case "messages":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		room := fs.String("room", "", "Room id, e.g. circle_family")
		cursor := fs.String("cursor", "", "Cursor returned by a previous page")
		_ = fs.Parse(args)
		err = withDB(config, true, func(db *badger.DB) error { return listMessages(db, *room, *cursor) })
	case "alerts":
		err = withDB(config, true, listAlerts)
	case "calls", "locations":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		user := fs.String("user", "", "User id")
		limit := fs.Int("limit", 20, "Number of entries")
		_ = fs.Parse(args)
		err = withDB(config, true, func(db *badger.DB) error {
			if command == "calls" {
				return listCalls(db, *user, *limit)
			}
			return listLocations(db, *user, *limit)
		})
	case "seed":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		user := fs.String("user", "", "User id")
		name := fs.String("name", "", "Display name")
		circles := fs.String("circles", "", "Comma separated circle ids")
		devices := fs.String("devices", "", "Comma separated device tokens")
		_ = fs.Parse(args)
		err = withDB(config, false, func(db *badger.DB) error {
			return seed(db, *user, *name, splitList(*circles), splitList(*devices))
		})
	case "token":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		user := fs.String("user", "", "User id")
		ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
		_ = fs.Parse(args)
		err = mintToken(config, *user, *ttl)
	case "serve":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		addr := fs.String("addr", "localhost:8081", "Listen address")
		_ = fs.Parse(args)
		err = withDB(config, true, func(db *badger.DB) error { return serve(db, *addr) })
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		color.Error.Println(err.Error())
		os.Exit(1)
	}
}

// withDB opens badger read-only when possible. BypassLockGuard lets the reader
// open the directory while the hub holds the lock.
func withDB(config Config, readOnly bool, fn func(db *badger.DB) error) error {
	opts := badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING)
	if readOnly {
		opts = opts.WithReadOnly(true).WithBypassLockGuard(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func title(format string, args ...any) {
	color.New(color.FgGreen, color.OpBold).Printf(format+"\n\n", args...)
}

func listProfiles(db *badger.DB) error {
	profiles, err := repositories.NewProfileRepository(db).Profiles()
	if err != nil {
		return err
	}
	title("%d profile(s)", len(profiles))
	table := newTable("User", "Name", "Circles", "Devices")
	for _, p := range profiles {
		table.Append([]string{p.UserID, p.DisplayName, strings.Join(p.CircleIDs, ","), fmt.Sprint(len(p.DeviceTokens))})
	}
	table.Render()
	return nil
}

func listMessages(db *badger.DB, room, cursor string) error {
	if room == "" {
		return fmt.Errorf("-room is required")
	}
	var cursorPtr *string
	if cursor != "" {
		cursorPtr = &cursor
	}
	messages, next, err := repositories.NewMessageRepository(db, logs.GetLoggerFromString("ERROR"), nil).
		GetMessages(domain.RoomID(room), cursorPtr)
	if err != nil {
		return err
	}
	title("%d message(s) in %s", len(messages), room)
	table := newTable("Time", "Sender", "Type", "Content", "Censored")
	for _, m := range messages {
		table.Append([]string{
			m.CreatedAt.Format(time.RFC3339), m.SenderID, string(m.Kind), m.Content, strings.Join(m.CensoredWords, ","),
		})
	}
	table.Render()
	if next != nil {
		color.Info.Printf("\nnext page: -cursor %s\n", *next)
	}
	return nil
}

func listAlerts(db *badger.DB) error {
	alerts, err := repositories.NewAlertRepository(db).Unresolved()
	if err != nil {
		return err
	}
	title("%d unresolved alert(s)", len(alerts))
	table := newTable("Id", "Raised", "Sender", "Type", "Message", "Rooms")
	for _, a := range alerts {
		rooms := make([]string, 0, len(a.Rooms))
		for _, r := range a.Rooms {
			rooms = append(rooms, r.String())
		}
		table.Append([]string{
			a.ID.String(), a.CreatedAt.Format(time.RFC3339), a.SenderID, string(a.Kind), a.Message, strings.Join(rooms, ","),
		})
	}
	table.Render()
	return nil
}

func listCalls(db *badger.DB, user string, limit int) error {
	if user == "" {
		return fmt.Errorf("-user is required")
	}
	calls, err := repositories.NewCallRepository(db).History(user, limit)
	if err != nil {
		return err
	}
	title("%d call(s) of %s", len(calls), user)
	table := newTable("Id", "Started", "Initiator", "Participants", "Type", "Status", "Duration")
	for _, c := range calls {
		table.Append([]string{
			c.ID.String(), c.StartedAt.Format(time.RFC3339), c.InitiatorID, strings.Join(c.ParticipantIDs, ","),
			string(c.Kind), string(c.Status), c.Duration.String(),
		})
	}
	table.Render()
	return nil
}

func listLocations(db *badger.DB, user string, limit int) error {
	if user == "" {
		return fmt.Errorf("-user is required")
	}
	// The TTL only matters for writes
	snapshots, err := repositories.NewLocationRepository(db, 0).History(user, limit)
	if err != nil {
		return err
	}
	title("%d location(s) of %s", len(snapshots), user)
	table := newTable("Time", "Latitude", "Longitude", "Accuracy", "Place")
	for _, s := range snapshots {
		table.Append([]string{
			s.At.Format(time.RFC3339), fmt.Sprintf("%.6f", s.Latitude), fmt.Sprintf("%.6f", s.Longitude),
			fmt.Sprintf("%.0fm", s.Accuracy), s.PlaceLabel,
		})
	}
	table.Render()
	return nil
}

// seed saves the profile then adds the user to every listed circle.
func seed(db *badger.DB, user, name string, circles, devices []string) error {
	if user == "" {
		return fmt.Errorf("-user is required")
	}
	profiles := repositories.NewProfileRepository(db)
	if err := profiles.SaveProfile(domain.Profile{UserID: user, DisplayName: name, DeviceTokens: devices}); err != nil {
		return err
	}
	for _, circleID := range circles {
		circle, found, err := profiles.Circle(circleID)
		if err != nil {
			return err
		}
		if !found {
			circle = domain.Circle{ID: circleID, Name: circleID}
		}
		if !slices.Contains(circle.MemberIDs, user) {
			circle.MemberIDs = append(circle.MemberIDs, user)
		}
		if err = profiles.SaveCircle(circle); err != nil {
			return err
		}
	}
	color.Success.Printf("Profile %s saved with %d circle(s)\n", user, len(circles))
	return nil
}

func mintToken(config Config, user string, ttl time.Duration) error {
	if user == "" || config.JWTSecret == "" {
		return fmt.Errorf("-user and JWT_SECRET are required")
	}
	token, err := auth.NewJWTVerifier(config.JWTSecret).GenerateToken(user, nil, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func serve(db *badger.DB, addr string) error {
	stats := func() map[string]any {
		return map[string]any{
			"Status": "Read-only inspector",
			"Time":   time.Now().Format(time.RFC822),
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/inspect", internal.InspectHandler(db, nil, stats))
	fmt.Printf("🌐 Inspector started at http://%s/inspect\n", addr)
	return http.ListenAndServe(addr, mux)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var res []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			res = append(res, v)
		}
	}
	return res
}
