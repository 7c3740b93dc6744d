package ipc

// Command represents a command sent over the socket
type Command struct {
	Name string      `json:"name"`
	Args interface{} `json:"args,omitempty"`
}

// Response represents a response sent back over the socket
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Command Argument Structs ---

type AddEventArgs struct {
	Name      string `json:"name"`
	DateDue   string `json:"date_due"` // "D Month YYYY"
	TimeDue   string `json:"time_due"` // "HH:MM"
	Category  string `json:"category"`
	Recurring string `json:"recurring"`
	Notes     string `json:"notes"`
}

type DeleteEventArgs struct {
	Name string `json:"name"`
}

type GetEventArgs struct {
	Name string `json:"name"`
}

type AddFriendArgs struct {
	Title     string `json:"title"`
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Mobile    string `json:"mobile"`
	Telephone string `json:"telephone"`
	Email     string `json:"email"`
	Birthday  string `json:"birthday"`
	HouseNo   string `json:"house_no"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	County    string `json:"county"`
	PostCode  string `json:"post_code"`
	Country   string `json:"country"`
	Notes     string `json:"notes"`
}

type DeleteFriendArgs struct {
	Key string `json:"key"` // "Last Name : First Name"
}

// --- Command Names (Constants) ---

const (
	CmdPing          = "ping"
	CmdGetStatus     = "get_status"
	CmdAddEvent      = "add_event"
	CmdDeleteEvent   = "delete_event"
	CmdGetEvent      = "get_event"
	CmdListEvents    = "list_events"
	CmdSaveEvents    = "save_events"
	CmdGetCategories = "get_categories"
	CmdAddFriend     = "add_friend"
	CmdDeleteFriend  = "delete_friend"
	CmdListFriends   = "list_friends"
	CmdSaveFriends   = "save_friends"
)

// --- Response Data ---

type StatusData struct {
	Events        int    `json:"events"`
	Friends       int    `json:"friends"`
	NextEvent     string `json:"next_event,omitempty"`
	NextRemaining string `json:"next_remaining,omitempty"`
}

type EventListData struct {
	Headers []string   `json:"headers"`
	Events  [][]string `json:"events"`
}

type FriendListData struct {
	Headers []string   `json:"headers"`
	Friends [][]string `json:"friends"`
}
