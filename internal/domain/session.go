package domain

// Actor names the credential slot a caller operates under. Tokens are
// persisted per actor and rehydrated on startup, mirroring the named
// storage keys used by the web client.
type Actor string

const (
	ActorUser  Actor = "user"
	ActorAdmin Actor = "admin"
)

type Session struct {
	IsLoggedIn  bool   `json:"is_logged_in"`
	AccessToken string `json:"access_token"`
}

// Credentials is the durable form of a Session plus the minimal profile
// fields the client keeps around between runs.
type Credentials struct {
	Actor       Actor             `json:"actor"`
	AccessToken string            `json:"access_token"`
	Profile     map[string]string `json:"profile,omitempty"`
}

func (c *Credentials) Session() Session {
	return Session{
		IsLoggedIn:  c.AccessToken != "",
		AccessToken: c.AccessToken,
	}
}
