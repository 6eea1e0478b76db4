package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: REFERENCE DATA AND TRAINEES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- EPA framework, immutable reference data
CREATE TABLE IF NOT EXISTS epas (
    id BIGINT PRIMARY KEY,
    code VARCHAR(20) NOT NULL UNIQUE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trainees (
    id VARCHAR(64) PRIMARY KEY,
    display_name VARCHAR(200) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    training_year VARCHAR(20) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_trainee_status CHECK (status IN ('active', 'inactive', 'completed'))
);

CREATE INDEX IF NOT EXISTS idx_trainees_active ON trainees(id) WHERE status = 'active';
`

const migration001Down = `
DROP TABLE IF EXISTS trainees;
DROP TABLE IF EXISTS epas;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACTIVITIES AND EPA LINKS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- One table for every activity kind; ids are unique within entity_type.
CREATE TABLE IF NOT EXISTS activities (
    entity_type VARCHAR(40) NOT NULL,
    id BIGINT NOT NULL,
    trainee_id VARCHAR(64) NOT NULL REFERENCES trainees(id) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    action_reference TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (entity_type, id),
    CONSTRAINT valid_activity_status CHECK (status IN ('draft', 'submitted', 'completed'))
);

CREATE INDEX IF NOT EXISTS idx_activities_trainee ON activities(trainee_id, entity_type);

CREATE TABLE IF NOT EXISTS activity_epa_links (
    entity_type VARCHAR(40) NOT NULL,
    activity_id BIGINT NOT NULL,
    epa_id BIGINT NOT NULL REFERENCES epas(id),

    PRIMARY KEY (entity_type, activity_id, epa_id),
    FOREIGN KEY (entity_type, activity_id) REFERENCES activities(entity_type, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_activity_epa_links_epa ON activity_epa_links(epa_id);
`

const migration002Down = `
DROP TABLE IF EXISTS activity_epa_links;
DROP TABLE IF EXISTS activities;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PORTFOLIO PROGRESS AND SURVEYS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Required count per category; absent rows fall back to the number recorded.
CREATE TABLE IF NOT EXISTS portfolio_requirements (
    trainee_id VARCHAR(64) NOT NULL REFERENCES trainees(id) ON DELETE CASCADE,
    category VARCHAR(40) NOT NULL,
    required INTEGER NOT NULL,

    PRIMARY KEY (trainee_id, category),
    CONSTRAINT valid_required CHECK (required >= 0)
);

CREATE TABLE IF NOT EXISTS learning_needs (
    id BIGSERIAL PRIMARY KEY,
    trainee_id VARCHAR(64) NOT NULL REFERENCES trainees(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'open',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_learning_need_status CHECK (status IN ('open', 'met'))
);

CREATE INDEX IF NOT EXISTS idx_learning_needs_trainee ON learning_needs(trainee_id);

CREATE TABLE IF NOT EXISTS review_signoffs (
    trainee_id VARCHAR(64) NOT NULL REFERENCES trainees(id) ON DELETE CASCADE,
    milestone VARCHAR(20) NOT NULL,
    supervisor_signed_off BOOLEAN NOT NULL DEFAULT FALSE,
    panel_signed_off BOOLEAN NOT NULL DEFAULT FALSE,
    outcome TEXT NOT NULL DEFAULT '',
    signed_off_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (trainee_id, milestone),
    CONSTRAINT valid_milestone CHECK (milestone IN ('interim', 'final'))
);

-- Scores and comments are keyed by question and comment field.
CREATE TABLE IF NOT EXISTS survey_responses (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    trainee_id VARCHAR(64) NOT NULL REFERENCES trainees(id) ON DELETE CASCADE,
    questionnaire_code VARCHAR(20) NOT NULL,
    submitted_at TIMESTAMP WITH TIME ZONE,
    scores JSONB NOT NULL DEFAULT '{}'::jsonb,
    comments JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_survey_responses_trainee
    ON survey_responses(trainee_id, questionnaire_code, submitted_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS survey_responses;
DROP TABLE IF EXISTS review_signoffs;
DROP TABLE IF EXISTS learning_needs;
DROP TABLE IF EXISTS portfolio_requirements;
`
