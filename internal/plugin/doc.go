// Package plugin loads calculator commands from Lua files and keeps the
// command registry in step with the plugin directory.
//
// A plugin is a file named <command>.lua anywhere under the plugin
// directory. Its top-level code must define a global command table:
//
//	command = {
//	    arity = 1,
//	    description = "Square a number",
//	    fn = function(args) return args[1] ^ 2 end,
//	}
//
// args is a 1-based array of numbers. fn returns a number, or signals a
// domain error by returning nil and a message or by calling error.
//
// # Components
//
// The Loader finds plugin files. The Validator compiles and runs a file in
// a fresh Lua state and checks the command table, producing a
// command.Descriptor. The Manager applies filesystem events to the
// registry:
//
//	created, modified, moved  unregister, validate, register
//	deleted                   unregister
//
// A file that fails validation leaves its command absent until the next
// valid edit. Only faults of the loading machinery itself are returned to
// the caller.
//
// Plugins run with the full Lua standard library; they are trusted local
// files.
package plugin
