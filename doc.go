// Package valet provides rule-based information extraction from
// tokenized text.
//
// The rule compiler and matcher are in package 'core', document
// tokenization is in 'tokens', stream couplings are in 'sio', and
// some command-line tools are in 'cmd'.
package valet
