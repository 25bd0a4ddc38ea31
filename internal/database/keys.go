package database

import "github.com/kristobalus/sport-triggers-sub000/internal/model"

// Key layout. Every collection owns one namespace; secondary indexes let
// lookups avoid full scans.

func triggerKey(id string) string {
	return "triggers/" + id
}

func triggerConditionsKey(triggerID string) string {
	return "triggers/" + triggerID + "/conditions"
}

func triggerSubscriptionsKey(triggerID string) string {
	return "triggers/" + triggerID + "/subscriptions"
}

func conditionKey(id string) string {
	return "conditions/" + id
}

// conditionLogKey holds the per-condition event log, keyed by snapshot id.
// It doubles as audit trail and duplicate-delivery guard.
func conditionLogKey(id string) string {
	return "conditions/" + id + "/logs"
}

func scopeTriggersKey(datasource, scope, scopeID string) string {
	return "scopes/" + datasource + "/" + scope + "/" + scopeID + "/triggers"
}

func entityTriggersKey(entity, entityID string) string {
	return "entities/" + entity + "/" + entityID + "/triggers"
}

func subscriptionKey(id string) string {
	return "subscriptions/" + id
}

func subscriptionReasonsKey(id string) string {
	return "subscriptions/" + id + "/reasons"
}

func entitySubscriptionsKey(entity, entityID string) string {
	return "entities/" + entity + "/" + entityID + "/subscriptions"
}

// uriTriggersKey indexes the triggers listening to one event URI; a sorted
// set scored by subscription time.
func uriTriggersKey(uri string) string {
	return "uri/" + uri + "/triggers"
}

func snapshotKey(s *model.ScopeSnapshot) string {
	return "json/" + s.Datasource + "/" + s.Sport + "/" + s.Scope + "/" + s.ScopeID + "/snapshots/" + s.ID
}

func snapshotScopePrefix(s *model.ScopeSnapshot) string {
	return "index/" + s.Datasource + "/" + s.Sport + "/" + s.Scope + "/" + s.ScopeID
}

// eventValuesKey holds the distinct values one event has produced in a scope.
func eventValuesKey(s *model.ScopeSnapshot, event string) string {
	return snapshotScopePrefix(s) + "/events/" + event + "/values"
}

// eventOccurrencesKey holds the snapshot ids that carried one (event, value)
// pair in a scope.
func eventOccurrencesKey(s *model.ScopeSnapshot, event, value string) string {
	return snapshotScopePrefix(s) + "/events/" + event + "/" + value + "/snapshots"
}
