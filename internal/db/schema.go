package db

// SchemaSQL defines the result and id counter tables. Record ids are the integer job ids,
// so each job maps to exactly one record.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS job_result SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job_id ON job_result TYPE int;
    -- Raw JSON text so reads return the exact bytes that were written
    DEFINE FIELD IF NOT EXISTS payload ON job_result TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON job_result TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS job_result_job_id ON job_result FIELDS job_id UNIQUE;

    -- Single record holding the highest job id handed out
    DEFINE TABLE IF NOT EXISTS job_counter SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS last_id ON job_counter TYPE int;
`
