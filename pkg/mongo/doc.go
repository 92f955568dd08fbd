// Package mongo connects to MongoDB through mongo-driver/v2.
//
// Connect and ConnectDatabase retry the initial ping; Healthcheck returns a
// check; IsNotFound and IsDuplicateKey classify driver errors for storage code.
// Config is read from MONGODB_* environment variables.
package mongo
