/*

Process of compilation

Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	analyze ->
Resolved and Checked Tree ->
	compile ->
Basic Block Intermediate Representation (ir) ->
	backend ->
Executable Function

The front end owns everything up to the finished ir.Package.
Instruction selection, register allocation and machine code
emission belong to the backend behind the exec.Backend boundary.

*/
package compiler
