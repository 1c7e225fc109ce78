/*
Package flow turns a loaded flow model into a running graph instance.

Build compiles every block through the registry and namespaces its nodes as
"<block>/<node>". It rewrites flow links that address a block's external
pads ("router.out_0") onto the internal pads behind them and normalizes
fan-out across the whole flow. Then it creates every node in three steps:
instantiate, sync state with the pipeline, attach the pad dispatcher. Dynamic
routes are registered before any node exists, so no runtime output can
escape its route. All static links are resolved last. Any link error is
fatal: the partial instance is torn down and the joined errors are returned.

The returned Instance accepts runtime changes: guarded property updates,
named control toggles, element insertion and state changes.
*/
package flow
