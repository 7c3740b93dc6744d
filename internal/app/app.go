package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"klockd/internal/config"
	"klockd/internal/event"
	"klockd/internal/history"
	"klockd/internal/ipc"
	"klockd/internal/notify"
	"klockd/internal/store"

	sqlitehistory "klockd/internal/history/sqlite"
)

// App wires the stores, the notification pipeline and the command
// socket together, and owns the 1 Hz ticker that drives the reminder
// sweep.
type App struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	events  *store.EventStore
	friends *store.FriendsStore
	hist    history.Store

	socketPath string
	listener   *net.UnixListener

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:        cfg,
		log:        log,
		socketPath: cfg.SocketPath,
		ctx:        ctx,
		cancel:     cancel,
	}

	a.hist = sqlitehistory.NewSQLiteStore(cfg.HistoryDBPath)
	if err := a.hist.Init(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize notification history: %w", err)
	}

	dispatcher := notify.Multi{
		notify.NewLogDispatcher(log),
		history.NewRecorder(a.hist),
	}

	events, err := store.NewEventStore(store.EventStoreOptions{
		Path:       cfg.EventsPath,
		Thresholds: cfg.Events.Thresholds(),
		Colour:     cfg.Events.StageColour,
		Clock:      clock.New(),
		Dispatcher: dispatcher,
		Logger:     log,
	})
	if err != nil {
		cancel()
		a.hist.Close()
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	a.events = events

	friends, err := store.NewFriendsStore(cfg.FriendsPath, log)
	if err != nil {
		cancel()
		a.hist.Close()
		return nil, fmt.Errorf("failed to open friends store: %w", err)
	}
	a.friends = friends

	return a, nil
}

// setupSocket checks for an existing socket and creates the listener.
func (a *App) setupSocket() error {
	if _, err := os.Stat(a.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", a.socketPath, 1*time.Second)
		if err == nil {
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", a.socketPath)
		}
		a.log.Infow("stale socket file found, removing", "path", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", a.socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", a.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", a.socketPath, err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", a.socketPath, err)
	}

	a.listener = listener
	a.log.Infow("listening for commands", "socket", a.socketPath)
	return nil
}

// listenForCommands accepts connections and handles them.
func (a *App) listenForCommands() {
	defer a.wg.Done()
	defer a.log.Info("socket command listener stopped")

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return // expected on shutdown
			default:
				a.log.Errorw("failed to accept connection", "err", err)
				if ne, ok := err.(net.Error); ok && !ne.Temporary() {
					a.log.Error("non-temporary accept error, stopping listener")
					return
				}
				time.Sleep(100 * time.Millisecond)
			}
			continue
		}
		a.wg.Add(1)
		go a.handleConnection(conn)
	}
}

// handleConnection reads one command, processes it, sends the response.
func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()
	defer a.wg.Done()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd ipc.Command
	if err := decoder.Decode(&cmd); err != nil {
		if err != io.EOF {
			a.log.Errorw("failed to decode command", "err", err)
		}
		_ = encoder.Encode(ipc.Response{Success: false, Message: "Failed to decode command: " + err.Error()})
		return
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	a.log.Debugw("received command", "name", cmd.Name)

	response := a.processCommand(cmd)

	if err := encoder.Encode(response); err != nil {
		a.log.Errorw("failed to send response", "err", err)
	}
}

// processCommand routes the command to the correct handler.
func (a *App) processCommand(cmd ipc.Command) ipc.Response {
	switch cmd.Name {
	case ipc.CmdPing:
		return ipc.Response{Success: true, Message: "pong"}

	case ipc.CmdGetStatus:
		status := ipc.StatusData{
			Events:  a.events.NumberOfEvents(),
			Friends: a.friends.NumberOfFriends(),
		}
		if name, remaining, ok := a.events.NextDue(); ok {
			status.NextEvent = name
			status.NextRemaining = remaining
		}
		return ipc.Response{Success: true, Data: status}

	case ipc.CmdAddEvent:
		var args ipc.AddEventArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		if args.Name == "" {
			return ipc.Response{Success: false, Message: "Event name cannot be empty"}
		}
		if !event.ValidCategory(args.Category) {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Unknown category %q", args.Category)}
		}
		if _, err := event.DueInstant(args.DateDue, args.TimeDue, time.Now()); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid due date/time: %v", err)}
		}
		a.events.Add(event.Event{
			Name:      args.Name,
			DateDue:   args.DateDue,
			TimeDue:   args.TimeDue,
			Category:  args.Category,
			Recurring: args.Recurring,
			Notes:     args.Notes,
		})
		if err := a.events.Save(); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Event added but save failed: %v", err)}
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("Event '%s' added", args.Name)}

	case ipc.CmdDeleteEvent:
		var args ipc.DeleteEventArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		if err := a.events.Delete(args.Name); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Delete failed: %v", err)}
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("Event '%s' deleted", args.Name)}

	case ipc.CmdGetEvent:
		var args ipc.GetEventArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		ev := a.events.Get(args.Name)
		return ipc.Response{Success: true, Data: ev.DisplayFields()}

	case ipc.CmdListEvents:
		return ipc.Response{Success: true, Data: ipc.EventListData{
			Headers: event.Headers(),
			Events:  a.events.Events(),
		}}

	case ipc.CmdSaveEvents:
		if err := a.events.Save(); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Save failed: %v", err)}
		}
		return ipc.Response{Success: true, Message: "Event store saved"}

	case ipc.CmdGetCategories:
		return ipc.Response{Success: true, Data: event.Categories()}

	case ipc.CmdAddFriend:
		var args ipc.AddFriendArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		if args.LastName == "" && args.FirstName == "" {
			return ipc.Response{Success: false, Message: "Friend needs a first or last name"}
		}
		f := store.Friend{
			Title: args.Title, LastName: args.LastName, FirstName: args.FirstName,
			Mobile: args.Mobile, Telephone: args.Telephone, Email: args.Email,
			Birthday: args.Birthday, HouseNo: args.HouseNo, Address1: args.Address1,
			Address2: args.Address2, City: args.City, County: args.County,
			PostCode: args.PostCode, Country: args.Country, Notes: args.Notes,
		}
		a.friends.Add(f)
		if err := a.friends.Save(); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Friend added but save failed: %v", err)}
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("Friend '%s' added", f.Key())}

	case ipc.CmdDeleteFriend:
		var args ipc.DeleteFriendArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		a.friends.Delete(args.Key)
		if err := a.friends.Save(); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Delete save failed: %v", err)}
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("Friend '%s' deleted", args.Key)}

	case ipc.CmdListFriends:
		return ipc.Response{Success: true, Data: ipc.FriendListData{
			Headers: store.FriendHeaders(),
			Friends: a.friends.Friends(),
		}}

	case ipc.CmdSaveFriends:
		if err := a.friends.Save(); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Save failed: %v", err)}
		}
		return ipc.Response{Success: true, Message: "Friends store saved"}

	default:
		return ipc.Response{Success: false, Message: fmt.Sprintf("Unknown command: %s", cmd.Name)}
	}
}

// mapToStruct converts the decoded args map back into a typed struct.
func mapToStruct(input interface{}, output interface{}) error {
	if input == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal args map: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal args into struct: %w", err)
	}
	return nil
}

func (a *App) Run() error {
	defer a.cleanup()

	a.log.Infow("starting klockd",
		"events", a.events.NumberOfEvents(),
		"friends", a.friends.NumberOfFriends(),
		"tick", a.cfg.TickInterval().String(),
	)

	if err := a.setupSocket(); err != nil {
		return err
	}

	a.handleSignals()

	a.wg.Add(1)
	go a.sweepLoop()

	a.wg.Add(1)
	go a.listenForCommands()

	a.log.Info("klockd running, send commands via klock-cli or socket")
	<-a.ctx.Done()

	a.log.Info("shutdown signal received, waiting for components")

	// Close the listener before waiting so Accept returns.
	if a.listener != nil {
		if err := a.listener.Close(); err != nil {
			a.log.Errorw("error closing socket listener", "err", err)
		}
	}

	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()

	select {
	case <-waitChan:
		a.log.Info("all application goroutines finished")
	case <-time.After(5 * time.Second):
		a.log.Warn("timeout waiting for application goroutines to stop")
	}

	return nil
}

// sweepLoop drives the reminder engine: one sweep per tick, nominally
// every second.
func (a *App) sweepLoop() {
	defer a.wg.Done()
	defer a.log.Info("sweep loop stopped")

	ticker := time.NewTicker(a.cfg.TickInterval())
	defer ticker.Stop()

	// An immediate first sweep so a restart re-fires nothing but
	// refreshes every remaining-time display straight away.
	a.events.Sweep(a.ctx)

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.events.Sweep(a.ctx)
		}
	}
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		a.log.Infow("received signal, initiating shutdown", "signal", sig.String())
		a.cancel()
	}()
}

func (a *App) cleanup() {
	a.log.Info("running cleanup")

	if err := a.events.Save(); err != nil {
		a.log.Errorw("failed to save event store on shutdown", "err", err)
	}
	if err := a.friends.Save(); err != nil {
		a.log.Errorw("failed to save friends store on shutdown", "err", err)
	}
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			a.log.Errorw("error closing notification history", "err", err)
		}
	}

	if _, err := os.Stat(a.socketPath); err == nil {
		if err := os.Remove(a.socketPath); err != nil {
			a.log.Warnw("failed to remove socket file", "path", a.socketPath, "err", err)
		}
	}

	a.log.Info("cleanup finished")
}
