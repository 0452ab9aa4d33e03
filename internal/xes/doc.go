// Package xes reads and writes the XES XML interchange format for event
// logs. It is a boundary collaborator: import builds a log through the
// construction protocol (create, parallel populate, finalize) and export
// reads one back trace by trace, so the package never touches core-owned
// objects directly.
package xes
