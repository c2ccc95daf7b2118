// Package broadcast delivers one admin-authored message to every
// registered recipient, split into transport-sized chunks, under a
// global minimum delay between consecutive sends.
//
// One recipient's delivery failure never aborts delivery to the others;
// failures are recorded and reported in the aggregate run report.
package broadcast
