// Package missionrt implements a multi-mission agent orchestrator: it runs
// user-submitted missions as isolated conversations against an external
// LLM-driven coding CLI (Claude Code or OpenCode), streams execution events
// to subscribers, and supervises the result for stalls and missing
// deliverables.
//
// The package tree separates concerns by layer: workspace (package
// workspace), CLI bootstrap (package bootstrap), workspace preparation
// (package wsprep), the streaming adapters (package adapter and its claude/
// opencode subpackages), the turn executor (package turn), and the mission
// state machine (package mission). This root package holds the types shared
// across all of them: AgentEvent, AgentResult, the EventSink, and the error
// taxonomy.
package missionrt
