// Package hooks is the callout dispatch runtime.
//
// Host code registers named hook points with a ServerHooks registry and
// creates a CalloutManager sized for the number of loaded extension
// libraries. Libraries attach callouts to hooks, either during their load
// phase (after SetLibraryIndex) or from inside a running callout through the
// LibraryHandle, which only ever reaches the calling library's own lists.
//
// Each unit of work (one packet, one config change) gets a CalloutHandle.
// Arguments on the handle are shared by every library; context values are
// private to the library that set them.
//
// Dispatch order is library slot order, then registration order. The set of
// callouts run for a library is fixed when that library's turn in the
// dispatch starts: callouts registered during the dispatch run from the next
// dispatch onwards, and deregistered ones still run in the current pass if
// they were part of it.
//
// The runtime has no internal locking. Hosts that dispatch from several
// goroutines must serialize all calls into it.
//
// Example usage:
//
//	registry := hooks.NewServerHooks()
//	queryIdx, _ := registry.RegisterHook("dns_query_received")
//	manager, _ := hooks.NewCalloutManager(registry, 1)
//
//	_ = manager.SetLibraryIndex(0)
//	_ = manager.RegisterCallout("dns_query_received", hooks.NewCallout("log", logQuery))
//
//	handle, err := hooks.NewCalloutHandle(manager)
//	if err != nil {
//		return err
//	}
//	handle.SetArgument("query", msg)
//	status, err := manager.CallCallouts(queryIdx, handle)
//	...
//	return handle.Close()
package hooks
