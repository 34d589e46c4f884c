// Package rooms serves the room, message, roster and theme routes of the web
// client. Every route runs behind a session; the acting user always comes
// from the verified cookie and never from the request body.
package rooms
