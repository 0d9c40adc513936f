// Package lifecycle provides the hook framework around entity persistence.
//
// A Handler participates in five points of an entity's life: BeforeSave,
// BeforeSaveInTx, AfterSaveInTx, AfterSave, and BeforeDelete. BeforeSave runs
// before the save transaction opens, so it is the place for slow work like
// network calls. The InTx hooks and BeforeDelete run inside the surrounding
// transaction and abort it on error; nothing inside a transaction may block
// on external I/O. AfterSave runs after commit, with failures logged and
// swallowed. There is no hook after delete. Handlers are composed into a
// Chain, which the repository drives.
//
// Three handlers ship with the engine: embedding generation (BeforeSave),
// version recording (AfterSaveInTx, atomic with the entity write), and
// semantic index maintenance (AfterSave/BeforeDelete). Each checks its
// capability interface and ignores entities that don't opt in, so one chain
// serves heterogeneous entity types.
package lifecycle
