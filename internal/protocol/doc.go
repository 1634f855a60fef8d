// Package protocol groups the console wire primitives of the FAH client.
//
// Ownership boundary:
// - frame: prompt-delimited message framing and command lines
// - pyon: PyON envelope normalization and string unescaping
// - session: connection management and command execution
package protocol
