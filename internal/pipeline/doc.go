// Package pipeline runs the splice-validation stages for one input file:
//
//	parse_path -> s3_download -> run_outrigger -> run_validate -> <subtype>_upload... -> __exec_time
//
// Stages run strictly in order. A stage runs only when every stage it
// depends on succeeded; otherwise it is skipped, which is reported in the
// returned Report but not written to the stage log (the log holds exactly
// one line per invoked stage).
package pipeline
