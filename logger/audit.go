package logger

import (
	"github.com/sirupsen/logrus"
)

// Audit records an administrative action. Audit lines always go out at info level with
// a fixed "audit" marker so they can be split off downstream.
func Audit(userID, action, details string) {
	Get().WithFields(logrus.Fields{
		"audit":   true,
		"user_id": userID,
		"action":  action,
	}).Info(details)
}
