// Package fah maps the FAH client command vocabulary onto typed calls over a
// console session.
package fah
