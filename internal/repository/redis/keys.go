package redisrepo

import "fmt"

const ns = "tixfront:v1"

func cacheMode(mode string) string {
	if mode == "" {
		return "default"
	}
	return mode
}

func KeyAction(mode string, actionID, venueID, cityID string) string {
	return fmt.Sprintf("%s:%s:action:%s:%s:%s", ns, cacheMode(mode), actionID, venueID, cityID)
}

// KeyActionIndex names the set of cached views of one action, so a single
// availability change can drop all of them.
func KeyActionIndex(actionID int64) string {
	return fmt.Sprintf("%s:action:%d:keys", ns, actionID)
}

func KeySchema(mode string, eventID int64) string {
	return fmt.Sprintf("%s:%s:event:%d:schema", ns, cacheMode(mode), eventID)
}

func KeySessionToken(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:api_key", ns, sessionID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemOrder(sessionID, idemKey string) string {
	return fmt.Sprintf("%s:idem:orders:%s:%s", ns, sessionID, idemKey)
}

func ChannelEventsChanged() string {
	return ns + ":events:changed"
}
