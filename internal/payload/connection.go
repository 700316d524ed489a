package payload

// ConnectionConfiguration is the per-project connection configuration.
type ConnectionConfiguration struct {
	IntercomIssuePanel  IssuePanel          `json:"intercomIssuePanel"`
	ConversationLinking ConversationLinking `json:"conversationLinking"`
	Version             int                 `json:"_version"`
}

// IssuePanel configures the issue panel.
type IssuePanel struct {
	Enabled               bool          `json:"enabled"`
	AllowConversationView bool          `json:"allowConversationView"`
	VisibleFields         VisibleFields `json:"visibleFields"`
}

// VisibleFields lists the contact attributes shown per contact type.
type VisibleFields struct {
	User    []string `json:"user"`
	Lead    []string `json:"lead"`
	Company []string `json:"company"`
}

// ConversationLinking configures linking behaviour.
type ConversationLinking struct {
	Enabled              bool                 `json:"enabled"`
	UnassignOnOpen       bool                 `json:"unassignOnOpen"`
	NotificationTriggers NotificationTriggers `json:"notificationTriggers"`
}

// NotificationTriggers holds the three issue event triggers.
type NotificationTriggers struct {
	IssueAssignmentChanged Trigger `json:"issueAssignmentChanged"`
	IssueCommented         Trigger `json:"issueCommented"`
	IssueTransitioned      Trigger `json:"issueTransitioned"`
}

// Trigger is a single notification trigger. FilterEnabled is only carried
// by the issueCommented trigger.
type Trigger struct {
	Name                string `json:"name"`
	Enabled             bool   `json:"enabled"`
	ReopenConversations bool   `json:"reopenConversations"`
	FilterEnabled       *bool  `json:"filterEnabled,omitempty"`
}

// Trigger names; each must match the slot it is stored in.
const (
	TriggerIssueAssignmentChanged = "issueAssignmentChanged"
	TriggerIssueCommented         = "issueCommented"
	TriggerIssueTransitioned      = "issueTransitioned"
)

func boolPtr(b bool) *bool { return &b }

var defaultVisibleContactFields = []string{
	"email",
	"phone",
	"user_id",
	"created_at",
	"last_request_at",
	"session_count",
}

// CloudDefaults is the configuration a project gets when the app is set up
// on a hosted instance.
var CloudDefaults = ConnectionConfiguration{
	IntercomIssuePanel: IssuePanel{
		Enabled:               true,
		AllowConversationView: true,
		VisibleFields: VisibleFields{
			User:    defaultVisibleContactFields,
			Lead:    defaultVisibleContactFields,
			Company: []string{"size", "website"},
		},
	},
	ConversationLinking: ConversationLinking{
		Enabled:        true,
		UnassignOnOpen: false,
		NotificationTriggers: NotificationTriggers{
			IssueAssignmentChanged: Trigger{Name: TriggerIssueAssignmentChanged, Enabled: true},
			IssueCommented:         Trigger{Name: TriggerIssueCommented, Enabled: true, FilterEnabled: boolPtr(false)},
			IssueTransitioned:      Trigger{Name: TriggerIssueTransitioned, Enabled: true},
		},
	},
	Version: 0,
}

// ApplyCloudDefaults overwrites the fields a self-hosted export cannot
// provide with the hosted defaults. Whatever the input carries for these
// fields is discarded.
func ApplyCloudDefaults(c ConnectionConfiguration) ConnectionConfiguration {
	c.IntercomIssuePanel.AllowConversationView = CloudDefaults.IntercomIssuePanel.AllowConversationView
	c.ConversationLinking.UnassignOnOpen = CloudDefaults.ConversationLinking.UnassignOnOpen
	c.Version = CloudDefaults.Version
	return c
}

type triggerWire struct {
	Name                *string `json:"name"`
	Enabled             *bool   `json:"enabled"`
	ReopenConversations *bool   `json:"reopenConversations"`
	FilterEnabled       *bool   `json:"filterEnabled"`
}

type connectionWire struct {
	IntercomIssuePanel *struct {
		Enabled       *bool `json:"enabled"`
		VisibleFields *struct {
			User    *[]*string `json:"user"`
			Lead    *[]*string `json:"lead"`
			Company *[]*string `json:"company"`
		} `json:"visibleFields"`
	} `json:"intercomIssuePanel"`
	ConversationLinking *struct {
		Enabled              *bool `json:"enabled"`
		NotificationTriggers *struct {
			IssueAssignmentChanged *triggerWire `json:"issueAssignmentChanged"`
			IssueCommented         *triggerWire `json:"issueCommented"`
			IssueTransitioned      *triggerWire `json:"issueTransitioned"`
		} `json:"notificationTriggers"`
	} `json:"conversationLinking"`
}

const connectionKind = "connection configuration"

func required(field string) error {
	return &ValidationError{Kind: connectionKind, Field: field, Reason: "required"}
}

// ParseConnectionConfiguration decodes an encoded connection configuration
// property. Fields that only exist on hosted instances are left at their zero
// value; use ApplyCloudDefaults to fill them.
func ParseConnectionConfiguration(encoded string) (ConnectionConfiguration, error) {
	var wire connectionWire
	if err := decodeEncoded(connectionKind, encoded, &wire); err != nil {
		return ConnectionConfiguration{}, err
	}

	var out ConnectionConfiguration

	panel := wire.IntercomIssuePanel
	switch {
	case panel == nil:
		return out, required("intercomIssuePanel")
	case panel.Enabled == nil:
		return out, required("intercomIssuePanel.enabled")
	case panel.VisibleFields == nil:
		return out, required("intercomIssuePanel.visibleFields")
	case panel.VisibleFields.User == nil:
		return out, required("intercomIssuePanel.visibleFields.user")
	case panel.VisibleFields.Lead == nil:
		return out, required("intercomIssuePanel.visibleFields.lead")
	case panel.VisibleFields.Company == nil:
		return out, required("intercomIssuePanel.visibleFields.company")
	}
	fields := panel.VisibleFields
	user, err := stringList(connectionKind, "intercomIssuePanel.visibleFields.user", *fields.User)
	if err != nil {
		return out, err
	}
	lead, err := stringList(connectionKind, "intercomIssuePanel.visibleFields.lead", *fields.Lead)
	if err != nil {
		return out, err
	}
	company, err := stringList(connectionKind, "intercomIssuePanel.visibleFields.company", *fields.Company)
	if err != nil {
		return out, err
	}
	out.IntercomIssuePanel = IssuePanel{
		Enabled:       *panel.Enabled,
		VisibleFields: VisibleFields{User: user, Lead: lead, Company: company},
	}

	linking := wire.ConversationLinking
	switch {
	case linking == nil:
		return out, required("conversationLinking")
	case linking.Enabled == nil:
		return out, required("conversationLinking.enabled")
	case linking.NotificationTriggers == nil:
		return out, required("conversationLinking.notificationTriggers")
	}
	out.ConversationLinking.Enabled = *linking.Enabled

	triggers := linking.NotificationTriggers
	if out.ConversationLinking.NotificationTriggers.IssueAssignmentChanged, err = parseTrigger(TriggerIssueAssignmentChanged, triggers.IssueAssignmentChanged, false); err != nil {
		return ConnectionConfiguration{}, err
	}
	if out.ConversationLinking.NotificationTriggers.IssueCommented, err = parseTrigger(TriggerIssueCommented, triggers.IssueCommented, true); err != nil {
		return ConnectionConfiguration{}, err
	}
	if out.ConversationLinking.NotificationTriggers.IssueTransitioned, err = parseTrigger(TriggerIssueTransitioned, triggers.IssueTransitioned, false); err != nil {
		return ConnectionConfiguration{}, err
	}

	return out, nil
}

func parseTrigger(name string, w *triggerWire, withFilter bool) (Trigger, error) {
	path := "conversationLinking.notificationTriggers." + name
	switch {
	case w == nil:
		return Trigger{}, required(path)
	case w.Name == nil:
		return Trigger{}, required(path + ".name")
	case *w.Name != name:
		return Trigger{}, &ValidationError{Kind: connectionKind, Field: path + ".name", Reason: "expected " + name + ", got " + *w.Name}
	case w.Enabled == nil:
		return Trigger{}, required(path + ".enabled")
	case w.ReopenConversations == nil:
		return Trigger{}, required(path + ".reopenConversations")
	case withFilter && w.FilterEnabled == nil:
		return Trigger{}, required(path + ".filterEnabled")
	}

	t := Trigger{Name: name, Enabled: *w.Enabled, ReopenConversations: *w.ReopenConversations}
	if withFilter {
		t.FilterEnabled = boolPtr(*w.FilterEnabled)
	}
	return t, nil
}
