// Package kodi provides the outbound adapters that query the upstream media
// center for its configuration. Two transports are supported: the JSON-RPC
// endpoint of its built-in web server, and its raw TCP JSON-RPC socket.
package kodi
