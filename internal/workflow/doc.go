// Package workflow implements a generic, domain-agnostic timeline execution
// engine. Callers build an ordered list of items satisfying the Item
// contract, start an Engine, and subscribe to the fixed event set to observe
// and persist progress. The engine itself knows nothing about what an item
// does — only how to drive it through its lifecycle.
package workflow
